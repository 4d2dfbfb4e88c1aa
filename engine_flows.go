package fastauth

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrEthical07/fastauth/internal/audit"
	"github.com/MrEthical07/fastauth/internal/flows"
	"github.com/MrEthical07/fastauth/refresh"
)

func (e *Engine) buildFlowDeps() flows.Deps {
	cfg := e.config

	metricInc := func(id int) {
		e.metricInc(MetricID(id))
	}
	warn := func(msg string, err error) {
		e.logger.Warn().Err(err).Msg(msg)
	}
	policy := cfg.Password.Policy

	issue := flows.IssueDeps{
		RefreshEnabled: cfg.RefreshToken.Enabled,
		RefreshTTL:     cfg.RefreshToken.TTL,
		CreateAccess:   e.jwtManager.CreateAccess,
	}
	if e.tokens != nil {
		issue.NewRefreshToken = refresh.New
		issue.SaveRefreshToken = e.tokens.SaveRefreshToken
	}

	deps := flows.Deps{
		Issue: issue,
		Register: flows.RegisterDeps{
			RequireUsername:          cfg.Identity.RequireUsername,
			NewUserID:                uuid.NewString,
			CheckPolicy:              policy.Check,
			HashPassword:             e.hasher.Hash,
			NewValidationError:       newValidationError,
			UserByNormalizedEmail:    e.users.UserByNormalizedEmail,
			UserByNormalizedUsername: e.users.UserByNormalizedUsername,
			CreateUser:               e.users.CreateUser,
			Issue:                    issue,
			MetricInc:                metricInc,
			EmitAudit:                e.emitAudit,
			Metrics: flows.RegisterMetrics{
				RegisterSuccess:   int(MetricRegisterSuccess),
				RegisterDuplicate: int(MetricRegisterDuplicate),
				RegisterFailure:   int(MetricRegisterFailure),
			},
			Events: flows.RegisterEvents{
				RegisterSuccess:   audit.EventRegisterSuccess,
				RegisterFailure:   audit.EventRegisterFailure,
				RegisterDuplicate: audit.EventRegisterDuplicate,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady: ErrEngineNotReady,
				EmailTaken:     ErrEmailTaken,
				UsernameTaken:  ErrUsernameTaken,
			},
		},
		Login: flows.LoginDeps{
			AllowUsernameLogin:       cfg.Identity.AllowUsernameLogin,
			UpgradeOnLogin:           cfg.Password.UpgradeOnLogin,
			DummyHash:                e.dummyHash,
			VerifyPassword:           e.hasher.Verify,
			NeedsUpgrade:             e.hasher.NeedsUpgrade,
			HashPassword:             e.hasher.Hash,
			NewValidationError:       newValidationError,
			UserByNormalizedEmail:    e.users.UserByNormalizedEmail,
			UserByNormalizedUsername: e.users.UserByNormalizedUsername,
			UpdatePasswordHash:       e.users.UpdatePasswordHash,
			Issue:                    issue,
			MetricInc:                metricInc,
			EmitAudit:                e.emitAudit,
			Warn:                     warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				PasswordUpgraded: int(MetricPasswordHashUpgraded),
			},
			Events: flows.LoginEvents{
				LoginSuccess:     audit.EventLoginSuccess,
				LoginFailure:     audit.EventLoginFailure,
				PasswordUpgraded: audit.EventPasswordUpgraded,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
			},
		},
		Refresh: flows.RefreshDeps{
			Enabled:  cfg.RefreshToken.Enabled && e.tokens != nil,
			TokenID:  refresh.ID,
			UserByID: e.users.UserByID,
			Issue:    issue,
		},
		Validate: flows.ValidateDeps{
			ParseAccess: e.jwtManager.ParseAccess,
		},
	}

	deps.ChangePassword = flows.ChangePasswordDeps{
		CheckPolicy:        policy.Check,
		VerifyPassword:     e.hasher.Verify,
		HashPassword:       e.hasher.Hash,
		NewValidationError: newValidationError,
		UserByID:           e.users.UserByID,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		DeleteUserRefreshTokens: func(context.Context, string) (int64, error) {
			return 0, nil
		},
		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Metrics: flows.ChangePasswordMetrics{
			Success:        int(MetricPasswordChangeSuccess),
			InvalidCurrent: int(MetricPasswordChangeInvalidOld),
			ReuseRejected:  int(MetricPasswordChangeReuseRejected),
			Failure:        int(MetricPasswordChangeFailure),
		},
		Events: flows.ChangePasswordEvents{
			Success:        audit.EventPasswordChangeSuccess,
			InvalidCurrent: audit.EventPasswordChangeInvalid,
			Reuse:          audit.EventPasswordChangeReuse,
			Failure:        audit.EventPasswordChangeFailure,
		},
		Errors: flows.ChangePasswordErrors{
			EngineNotReady:     ErrEngineNotReady,
			UserNotFound:       ErrUserNotFound,
			InvalidCredentials: ErrInvalidCredentials,
			PasswordReuse:      ErrPasswordReuse,
		},
	}

	if e.tokens == nil {
		return deps
	}

	deps.ChangePassword.DeleteUserRefreshTokens = e.tokens.DeleteUserRefreshTokens
	deps.Refresh.ConsumeRefreshToken = e.tokens.ConsumeRefreshToken
	deps.Logout = flows.LogoutDeps{
		TokenID:                 refresh.ID,
		DeleteRefreshToken:      e.tokens.DeleteRefreshToken,
		DeleteUserRefreshTokens: e.tokens.DeleteUserRefreshTokens,
		MetricInc:               metricInc,
		EmitAudit:               e.emitAudit,
		Metrics: flows.LogoutMetrics{
			Logout:    int(MetricLogout),
			LogoutAll: int(MetricLogoutAll),
		},
		Events: flows.LogoutEvents{
			Logout:    audit.EventLogout,
			LogoutAll: audit.EventLogoutAll,
		},
		Errors: flows.LogoutErrors{
			EngineNotReady:      ErrEngineNotReady,
			RefreshTokenInvalid: ErrRefreshTokenInvalid,
			UserNotFound:        ErrUserNotFound,
		},
	}
	return deps
}
