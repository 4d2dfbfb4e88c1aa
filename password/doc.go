// Package password hashes and verifies user passwords and checks them against
// a composition policy.
//
// # Algorithms
//
// [Bcrypt] is the default. [Argon2] emits PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both report [Hasher.NeedsUpgrade] when a stored hash was produced with
// weaker parameters than the hasher is configured with, so callers can
// re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other fastauth package.
//   - Log plaintext passwords.
package password
