// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Analysis submission, status, artifacts and results
//   - Cancellation
//   - Health checks
//   - Prometheus metrics
package http
