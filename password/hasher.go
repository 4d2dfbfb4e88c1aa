package password

import (
	"errors"
	"fmt"
)

// ErrUnsupportedHash is returned when an encoded hash was not produced by the
// hasher asked to verify it.
var ErrUnsupportedHash = errors.New("password: unsupported hash format")

// Hasher hashes passwords and verifies them against stored hashes.
// Implementations must be safe for concurrent use.
type Hasher interface {
	// Hash returns an encoded hash of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches encoded. A mismatch is
	// (false, nil); malformed hashes return an error.
	Verify(password, encoded string) (bool, error)

	// NeedsUpgrade reports whether encoded was produced with weaker
	// parameters than the hasher's current configuration.
	NeedsUpgrade(encoded string) (bool, error)
}

// Algorithm names a supported hashing algorithm.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// HasherConfig selects and tunes a Hasher. Zero values take defaults.
type HasherConfig struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Config
}

// NewHasher builds the Hasher described by cfg.
func NewHasher(cfg HasherConfig) (Hasher, error) {
	switch cfg.Algorithm {
	case "", AlgorithmBcrypt:
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = DefaultBcryptCost
		}
		return NewBcrypt(cost)
	case AlgorithmArgon2id:
		a := cfg.Argon2
		if a == (Config{}) {
			a = DefaultArgon2Config()
		}
		return NewArgon2(a)
	default:
		return nil, fmt.Errorf("password: unsupported algorithm %q (use bcrypt or argon2id)", cfg.Algorithm)
	}
}
