package fastauth

import (
	"errors"
	"strings"

	"github.com/MrEthical07/fastauth/internal/validate"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken is returned by Register when the normalized email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned by Register when the normalized username exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers both unknown identifiers and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	// ErrRefreshTokenInvalid is returned for malformed, unknown or already
	// used refresh tokens.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshDisabled is returned by Refresh when RefreshToken.Enabled is false.
	ErrRefreshDisabled = errors.New("refresh tokens disabled")
	ErrTokenInvalid    = errors.New("access token invalid")
	ErrTokenExpired    = errors.New("access token expired")
	// ErrPasswordReuse is returned by ChangePassword when the new password
	// equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FieldError describes one rejected request field.
type FieldError = validate.FieldError

// ValidationError lists every rejected field of a request. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func newValidationError(fields []validate.FieldError) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Field returns the messages recorded for name.
func (e *ValidationError) Field(name string) []string {
	var out []string
	for _, f := range e.Fields {
		if f.Field == name {
			out = append(out, f.Message)
		}
	}
	return out
}
