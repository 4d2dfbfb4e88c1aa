// Package refresh generates opaque refresh tokens and derives their storage
// ids.
//
// # Token format
//
// A token is 32 random bytes, base64url-encoded without padding (43
// characters). Stores only ever see [ID], the hex SHA-256 of the raw bytes,
// so a leaked table cannot be replayed.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Implement rotation policy; the Engine consumes and reissues tokens.
package refresh
