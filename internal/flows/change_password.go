package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/fastauth/internal/validate"
	"github.com/MrEthical07/fastauth/password"
	"github.com/MrEthical07/fastauth/store"
)

type ChangePasswordMetrics struct {
	Success        int
	InvalidCurrent int
	ReuseRejected  int
	Failure        int
}

type ChangePasswordEvents struct {
	Success        string
	InvalidCurrent string
	Reuse          string
	Failure        string
}

type ChangePasswordErrors struct {
	EngineNotReady     error
	UserNotFound       error
	InvalidCredentials error
	PasswordReuse      error
}

type ChangePasswordDeps struct {
	CheckPolicy        func(string) error
	VerifyPassword     func(pw, encoded string) (bool, error)
	HashPassword       func(string) (string, error)
	NewValidationError func([]validate.FieldError) error

	UserByID                func(context.Context, string) (*store.User, error)
	UpdatePasswordHash      func(context.Context, string, string) error
	DeleteUserRefreshTokens func(context.Context, string) (int64, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword replaces the password of userID after verifying the
// current one, then revokes every refresh token the user holds.
func RunChangePassword(ctx context.Context, userID, current, next string, deps ChangePasswordDeps) error {
	normalizeChangePasswordDeps(&deps)
	if deps.VerifyPassword == nil || deps.HashPassword == nil || deps.UserByID == nil ||
		deps.UpdatePasswordHash == nil || deps.DeleteUserRefreshTokens == nil {
		return deps.Errors.EngineNotReady
	}

	user, err := deps.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", deps.Errors.UserNotFound, reason("user_not_found"))
			return deps.Errors.UserNotFound
		}
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", err, reason("lookup_failed"))
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := deps.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.InvalidCurrent)
		deps.EmitAudit(ctx, deps.Events.InvalidCurrent, false, user.ID, "", deps.Errors.InvalidCredentials, nil)
		return deps.Errors.InvalidCredentials
	}

	if current == next {
		deps.MetricInc(deps.Metrics.ReuseRejected)
		deps.EmitAudit(ctx, deps.Events.Reuse, false, user.ID, "", deps.Errors.PasswordReuse, nil)
		return deps.Errors.PasswordReuse
	}

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(next); err != nil {
			verr := deps.NewValidationError(policyFieldErrors("new_password", err))
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, "", verr, reason("policy"))
			return verr
		}
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, "", err, reason("hash_failed"))
		return fmt.Errorf("hash password: %w", err)
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, "", err, reason("update_failed"))
		return fmt.Errorf("update password hash: %w", err)
	}

	revoked, err := deps.DeleteUserRefreshTokens(ctx, user.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, "", err, reason("revoke_failed"))
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.FormatInt(revoked, 10)}
	})
	return nil
}

func policyFieldErrors(field string, err error) []validate.FieldError {
	var pe *password.PolicyError
	if !errors.As(err, &pe) {
		return []validate.FieldError{{Field: field, Message: err.Error()}}
	}
	out := make([]validate.FieldError, 0, len(pe.Violations))
	for _, v := range pe.Violations {
		out = append(out, validate.FieldError{Field: field, Message: v})
	}
	return out
}

func normalizeChangePasswordDeps(deps *ChangePasswordDeps) {
	if deps.NewValidationError == nil {
		deps.NewValidationError = func(f []validate.FieldError) error {
			return fmt.Errorf("validation failed: %d field(s)", len(f))
		}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
