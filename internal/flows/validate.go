package flows

import (
	"errors"
	"strings"

	"github.com/MrEthical07/fastauth/jwt"
)

// ValidateFailureKind classifies access-token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureEmpty
	ValidateFailureInvalid
	ValidateFailureExpired
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseAccess func(string) (*jwt.AccessClaims, error)
}

// RunValidate verifies an access token. An optional "Bearer " prefix is
// accepted.
func RunValidate(token string, deps ValidateDeps) ValidateResult {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return ValidateResult{Failure: ValidateFailureEmpty}
	}

	claims, err := deps.ParseAccess(token)
	switch {
	case err == nil:
		return ValidateResult{Claims: claims}
	case errors.Is(err, jwt.ErrExpired):
		return ValidateResult{Failure: ValidateFailureExpired, Err: err}
	default:
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}
}
