// Package jwt issues and verifies access tokens.
//
// A [Manager] signs with one of HS256, RS256 or EdDSA (Ed25519). Asymmetric
// managers built without a private key are verify-only. Verification pins the
// algorithm, enforces issuer, audience and leeway, checks the kid header when
// key ids are configured, and rejects tokens issued too far in the future.
//
// # What this package must NOT do
//
//   - Touch storage or refresh tokens.
//   - Import fastauth (no upward imports).
package jwt
