package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/fastauth/internal/normalize"
	"github.com/MrEthical07/fastauth/internal/validate"
	"github.com/MrEthical07/fastauth/store"
)

type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	RegisterFailure   int
}

type RegisterEvents struct {
	RegisterSuccess   string
	RegisterFailure   string
	RegisterDuplicate string
}

type RegisterErrors struct {
	EngineNotReady error
	EmailTaken     error
	UsernameTaken  error
}

type RegisterDeps struct {
	RequireUsername bool

	Now                func() time.Time
	NewUserID          func() string
	CheckPolicy        func(string) error
	HashPassword       func(string) (string, error)
	NewValidationError func([]validate.FieldError) error

	UserByNormalizedEmail    func(context.Context, string) (*store.User, error)
	UserByNormalizedUsername func(context.Context, string) (*store.User, error)
	CreateUser               func(context.Context, *store.User) error

	Issue IssueDeps

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates req, creates the account and issues its first
// token pair.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*Issued, error) {
	normalizeRegisterDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.NewUserID == nil ||
		deps.UserByNormalizedEmail == nil || deps.UserByNormalizedUsername == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if fields := registrationFieldErrors(email, username, req.Password, deps); len(fields) > 0 {
		verr := deps.NewValidationError(fields)
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", verr, reason("validation"))
		return nil, verr
	}

	normalizedEmail := normalize.Email(email)
	var normalizedUsername string
	if username != "" {
		normalizedUsername = normalize.Username(username)
	}

	if taken, err := exists(ctx, deps.UserByNormalizedEmail, normalizedEmail); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, reason("email_lookup_failed"))
		return nil, fmt.Errorf("lookup email: %w", err)
	} else if taken {
		return nil, registerDuplicate(ctx, deps, deps.Errors.EmailTaken, "email")
	}
	if normalizedUsername != "" {
		if taken, err := exists(ctx, deps.UserByNormalizedUsername, normalizedUsername); err != nil {
			deps.MetricInc(deps.Metrics.RegisterFailure)
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, reason("username_lookup_failed"))
			return nil, fmt.Errorf("lookup username: %w", err)
		} else if taken {
			return nil, registerDuplicate(ctx, deps, deps.Errors.UsernameTaken, "username")
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, reason("hash_failed"))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := deps.Now().UTC()
	user := &store.User{
		ID:                 deps.NewUserID(),
		Email:              email,
		NormalizedEmail:    normalizedEmail,
		Username:           username,
		NormalizedUsername: normalizedUsername,
		PasswordHash:       hash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := deps.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return nil, registerDuplicate(ctx, deps, deps.Errors.EmailTaken, "email")
		case errors.Is(err, store.ErrDuplicateUsername):
			return nil, registerDuplicate(ctx, deps, deps.Errors.UsernameTaken, "username")
		}
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, reason("create_failed"))
		return nil, fmt.Errorf("create user: %w", err)
	}

	issued, err := IssueTokens(ctx, user, deps.Issue)
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, user.ID, "", err, reason("issue_failed"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, user.ID, issued.RefreshTokenID, nil, nil)
	return issued, nil
}

func registrationFieldErrors(email, username, pw string, deps RegisterDeps) []validate.FieldError {
	fields := validate.Struct(validate.Registration{
		Email:    email,
		Username: username,
		Password: pw,
	})
	if deps.RequireUsername && username == "" {
		fields = append(fields, validate.FieldError{Field: "username", Message: "is required"})
	}
	if pw == "" || deps.CheckPolicy == nil {
		return fields
	}
	if err := deps.CheckPolicy(pw); err != nil {
		fields = append(fields, policyFieldErrors("password", err)...)
	}
	return fields
}

func registerDuplicate(ctx context.Context, deps RegisterDeps, err error, field string) error {
	deps.MetricInc(deps.Metrics.RegisterDuplicate)
	deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, "", "", err, func() map[string]string {
		return map[string]string{"field": field}
	})
	return err
}

func exists(ctx context.Context, lookup func(context.Context, string) (*store.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	deps.Now = nowOr(deps.Now)
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
