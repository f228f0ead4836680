// Package events provides event bus implementations.
//
// Implementations:
//   - memory: in-process bus with bounded per-subscriber buffers
//   - redis: Redis Streams mirror for external consumers
//   - Tee: composite that publishes to both
package events
