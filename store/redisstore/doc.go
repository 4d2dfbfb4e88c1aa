// Package redisstore persists refresh tokens in Redis. It implements only
// [store.RefreshTokenStore]; pair it with a user store through
// [store.Combine].
//
// # Layout
//
// Each token row is one key holding a compact binary record, expiring shortly
// after the token itself. A per-user set indexes the token ids so logout-all
// can remove them in one script call.
//
// # What this package must NOT do
//
//   - Store plaintext refresh tokens (keys carry the SHA-256 id only).
//   - Import fastauth or jwt (no upward imports).
package redisstore
