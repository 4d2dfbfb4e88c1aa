package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/fastauth/internal/normalize"
	"github.com/MrEthical07/fastauth/internal/validate"
	"github.com/MrEthical07/fastauth/store"
)

type LoginRequest struct {
	Identifier string
	Password   string
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	PasswordUpgraded int
}

type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	PasswordUpgraded string
}

type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
}

type LoginDeps struct {
	AllowUsernameLogin bool
	UpgradeOnLogin     bool
	// DummyHash is verified against when no user matches, so unknown
	// identifiers cost the same hash work as wrong passwords.
	DummyHash string

	VerifyPassword     func(pw, encoded string) (bool, error)
	NeedsUpgrade       func(encoded string) (bool, error)
	HashPassword       func(string) (string, error)
	NewValidationError func([]validate.FieldError) error

	UserByNormalizedEmail    func(context.Context, string) (*store.User, error)
	UserByNormalizedUsername func(context.Context, string) (*store.User, error)
	UpdatePasswordHash       func(context.Context, string, string) error

	Issue IssueDeps

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, error)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates req and issues a token pair.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*Issued, error) {
	normalizeLoginDeps(&deps)
	if deps.VerifyPassword == nil || deps.UserByNormalizedEmail == nil || deps.UserByNormalizedUsername == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier := strings.TrimSpace(req.Identifier)
	if fields := validate.Struct(validate.Login{Identifier: identifier, Password: req.Password}); len(fields) > 0 {
		deps.MetricInc(deps.Metrics.LoginFailure)
		verr := deps.NewValidationError(fields)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", verr, reason("validation"))
		return nil, verr
	}

	user, err := resolveLoginUser(ctx, identifier, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", err, reason("lookup_failed"))
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", deps.Errors.InvalidCredentials, reason("unknown_identifier"))
		return nil, deps.Errors.InvalidCredentials
	}

	ok, err := deps.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		deps.Warn("fastauth: stored password hash could not be verified", err)
	}
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, "", deps.Errors.InvalidCredentials, reason("password_mismatch"))
		return nil, deps.Errors.InvalidCredentials
	}

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, user, req.Password, deps)
	}

	issued, err := IssueTokens(ctx, user, deps.Issue)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, "", err, reason("issue_failed"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, issued.RefreshTokenID, nil, nil)
	return issued, nil
}

// resolveLoginUser returns (nil, nil) when no account matches.
func resolveLoginUser(ctx context.Context, identifier string, deps LoginDeps) (*store.User, error) {
	var (
		user *store.User
		err  error
	)
	switch {
	case strings.Contains(identifier, "@"):
		user, err = deps.UserByNormalizedEmail(ctx, normalize.Email(identifier))
	case deps.AllowUsernameLogin:
		user, err = deps.UserByNormalizedUsername(ctx, normalize.Username(identifier))
	default:
		return nil, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// upgradePasswordHash rehashes with current parameters. Failures are
// logged and never fail the login.
func upgradePasswordHash(ctx context.Context, user *store.User, pw string, deps LoginDeps) {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(pw)
	if err != nil {
		deps.Warn("fastauth: password rehash failed", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("fastauth: password hash upgrade not persisted", err)
		return
	}
	user.PasswordHash = hash
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
	deps.EmitAudit(ctx, deps.Events.PasswordUpgraded, true, user.ID, "", nil, nil)
}

func normalizeLoginDeps(deps *LoginDeps) {
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
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
}
