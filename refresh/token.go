package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const secretSize = 32

// ErrMalformed is returned for strings that cannot be a refresh token.
var ErrMalformed = errors.New("refresh: malformed token")

// New returns a fresh token and its storage id.
func New() (token string, id string, err error) {
	var secret [secretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", fmt.Errorf("refresh: random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), hashID(secret[:]), nil
}

// ID decodes token and returns its storage id.
func ID(token string) (string, error) {
	if len(token) != base64.RawURLEncoding.EncodedLen(secretSize) {
		return "", ErrMalformed
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil || len(raw) != secretSize {
		return "", ErrMalformed
	}
	return hashID(raw), nil
}

func hashID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}
