// Package storage provides persistence implementations.
//
// Implementations:
//   - postgres: player accounts in PostgreSQL via GORM and golang-migrate
//   - redis: room snapshots as JSON with TTL
//   - memory: in-memory room snapshots
package storage
