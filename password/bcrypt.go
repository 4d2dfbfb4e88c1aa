package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// ErrPasswordTooLong is returned for inputs longer than the hasher accepts.
// Bcrypt would otherwise truncate at 72 bytes.
var ErrPasswordTooLong = errors.New("password: too long")

const bcryptMaxBytes = 72

// Bcrypt hashes with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. cost must be within bcrypt's 4..31 range.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: bcrypt cost must be between %d and %d (got %d)", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("password: bcrypt: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	if !isBcrypt(encoded) {
		return false, ErrUnsupportedHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("password: bcrypt: %w", err)
	}
}

func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	if !isBcrypt(encoded) {
		return false, ErrUnsupportedHash
	}
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("password: bcrypt: %w", err)
	}
	return cost < b.cost, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
