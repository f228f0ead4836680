// Package llm provides LLM client implementations.
//
// The factory creates LLM clients based on provider configuration.
// Supported providers:
//   - anthropic: Claude via the official SDK
//   - scripted: deterministic canned completions for local runs and tests
package llm
