// Package fastauth issues JWT access tokens and single-use rotating refresh
// tokens, and verifies credentials against a pluggable [store.Store].
//
// An [Engine] is assembled once with [New] and [Builder.Build] and is safe
// for concurrent use afterwards:
//
//	engine, err := fastauth.New().
//		WithConfig(cfg).
//		WithStore(memstore.New()).
//		Build()
//
// Persistence lives behind the store package. Adapters ship for in-memory
// maps, GORM, PostgreSQL (pgx), MongoDB and Redis (refresh tokens only), and
// [store.Combine] mixes them.
//
// Plaintext passwords and refresh tokens are never persisted or logged.
// Refresh tokens are stored as the SHA-256 of their bytes and are consumed
// atomically, so each one is accepted at most once.
package fastauth
