// Package ports defines the interfaces between the application core and its
// adapters: event delivery, caching, session archiving, LLM and data-vendor
// backends, and metrics.
package ports
