// Package storage provides session archive and tool cache implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: in-memory, used when no Redis address is configured
package storage
