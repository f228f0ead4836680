// Package tools implements the tool invoker: the single retryable path for
// all external data and LLM calls, with cache-key computation, bounded
// backoff and failure classification.
package tools
