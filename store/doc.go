// Package store defines the persistence contract the fastauth engine relies on:
// users with normalized email/username uniqueness, and single-use refresh-token
// rows keyed by the SHA-256 of the opaque token.
//
// # Adapters
//
//   - memstore: in-process maps (tests, examples).
//   - gormstore: relational databases through GORM.
//   - pgstore: PostgreSQL through a pgx pool.
//   - mongostore: MongoDB collections.
//   - redisstore: refresh tokens in Redis (combine with a user backend via [Combine]).
//
// # What this package must NOT do
//
//   - Hash passwords, sign tokens, or normalize identifiers. Callers hand in
//     already-normalized values.
//   - Persist plaintext refresh tokens.
package store
