package fastauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/fastauth/internal/audit"
	"github.com/MrEthical07/fastauth/internal/flows"
	"github.com/MrEthical07/fastauth/jwt"
	"github.com/MrEthical07/fastauth/password"
	"github.com/MrEthical07/fastauth/store"
)

// Engine runs the authentication operations. Build it with [New]; methods
// are safe for concurrent use.
type Engine struct {
	config     Config
	users      store.UserStore
	tokens     store.RefreshTokenStore
	logger     zerolog.Logger
	hasher     password.Hasher
	dummyHash  string
	jwtManager *jwt.Manager
	metrics    *Metrics
	audit      *audit.Dispatcher
	flows      flows.Deps
}

// Close flushes pending audit events. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.jwtManager != nil
}

// Register creates an account and returns its first token pair.
//
// Field problems are reported together as a *ValidationError. A taken email
// or username yields ErrEmailTaken or ErrUsernameTaken, including when a
// concurrent registration wins the race inside the store.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	issued, err := flows.RunRegister(ctx, flows.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	}, e.flows.Register)
	if err != nil {
		e.logFailure("register", err)
		return nil, err
	}
	e.metricInc(MetricTokensIssued)
	return authResultFrom(issued), nil
}

// Login verifies credentials and returns a token pair. Unknown identifiers
// and wrong passwords both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	issued, err := flows.RunLogin(ctx, flows.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
	}, e.flows.Login)
	if err != nil {
		e.logFailure("login", err)
		return nil, err
	}
	e.metricInc(MetricTokensIssued)
	return authResultFrom(issued), nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is consumed even when the call fails afterwards.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricTokensIssued)
		e.emitAudit(ctx, audit.EventRefreshSuccess, true, res.UserID, res.Issued.RefreshTokenID, nil, func() map[string]string {
			return map[string]string{"consumed": res.TokenID}
		})
		return authResultFrom(res.Issued), nil

	case flows.RefreshFailureDisabled:
		return nil, ErrRefreshDisabled

	case flows.RefreshFailureDecode:
		e.metricInc(MetricRefreshInvalid)
		e.emitAudit(ctx, audit.EventRefreshInvalid, false, "", "", ErrRefreshTokenInvalid, refreshReason("decode_failed"))
		return nil, ErrRefreshTokenInvalid

	case flows.RefreshFailureNotFound:
		e.metricInc(MetricRefreshInvalid)
		e.emitAudit(ctx, audit.EventRefreshInvalid, false, "", res.TokenID, ErrRefreshTokenInvalid, refreshReason("not_found"))
		return nil, ErrRefreshTokenInvalid

	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshExpired)
		e.emitAudit(ctx, audit.EventRefreshExpired, false, res.UserID, res.TokenID, ErrRefreshTokenExpired, nil)
		return nil, ErrRefreshTokenExpired

	case flows.RefreshFailureUserNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefreshInvalid, false, res.UserID, res.TokenID, ErrUserNotFound, refreshReason("user_not_found"))
		return nil, ErrUserNotFound

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefreshInvalid, false, res.UserID, res.TokenID, res.Err, refreshReason(refreshFailureReason(res.Failure)))
		e.logFailure("refresh", res.Err)
		return nil, fmt.Errorf("refresh: %w", res.Err)
	}
}

// Logout deletes one refresh token. Logging out an unknown or already used
// token succeeds; a malformed token returns ErrRefreshTokenInvalid.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if e.tokens == nil {
		return ErrRefreshDisabled
	}
	err := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	if err != nil && !errors.Is(err, ErrRefreshTokenInvalid) {
		e.logFailure("logout", err)
	}
	return err
}

// LogoutAll deletes every refresh token of userID and reports how many
// were removed. Access tokens already issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if e.tokens == nil {
		return 0, ErrRefreshDisabled
	}
	n, err := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		e.logFailure("logout_all", err)
	}
	return n, err
}

// ValidateAccessToken verifies signature, expiry, issuer and audience of an
// access token. It does not touch the store.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := flows.RunValidate(token, e.flows.Validate)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metricInc(MetricValidateSuccess)
		return claimsFrom(res.Claims), nil
	case flows.ValidateFailureExpired:
		e.metricInc(MetricValidateExpired)
		return nil, ErrTokenExpired
	default:
		e.metricInc(MetricValidateInvalid)
		return nil, ErrTokenInvalid
	}
}

// User returns the stored account for userID.
func (e *Engine) User(ctx context.Context, userID string) (*store.User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserNotFound
	}
	u, err := e.users.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u.Clone(), nil
}

// ChangePassword verifies current, stores the hash of next and revokes all
// refresh tokens of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := flows.RunChangePassword(ctx, userID, current, next, e.flows.ChangePassword)
	if err != nil {
		e.logFailure("change_password", err)
	}
	return err
}

// logFailure logs unexpected errors. Expected outcomes such as bad
// credentials are covered by audit and metrics and stay at debug.
func (e *Engine) logFailure(op string, err error) {
	if isExpected(err) {
		e.logger.Debug().Str("op", op).Str("reason", err.Error()).Msg("operation rejected")
		return
	}
	e.logger.Error().Str("op", op).Err(err).Msg("operation failed")
}

func isExpected(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrEmailTaken, ErrUsernameTaken, ErrInvalidCredentials,
		ErrUserNotFound, ErrRefreshTokenInvalid, ErrRefreshTokenExpired,
		ErrRefreshDisabled, ErrPasswordReuse,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func refreshReason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureConsume:
		return "consume_failed"
	case flows.RefreshFailureUserLookup:
		return "user_lookup_failed"
	case flows.RefreshFailureIssue:
		return "issue_failed"
	default:
		return "unknown"
	}
}

func claimsFrom(c *jwt.AccessClaims) *Claims {
	out := &Claims{
		UserID:   c.Subject,
		Email:    c.Email,
		Username: c.Username,
		TokenID:  c.ID,
	}
	if c.CreatedAt > 0 {
		out.CreatedAt = time.Unix(c.CreatedAt, 0).UTC()
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
