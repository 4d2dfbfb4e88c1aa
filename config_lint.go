package fastauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/fastauth/password"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a setting that is valid but probably not what a production
// deployment wants.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintWarnings []LintWarning

func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	selected := ws.BySeverity(min)
	if len(selected) == 0 {
		return nil
	}
	parts := make([]string, 0, len(selected))
	for _, w := range selected {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports risky but valid settings. It does not call Validate.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1m widens the replay window of expired tokens")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked; keep AccessTTL at 15m or less")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		add("claims_unscoped", LintInfo, "set Issuer and Audience so tokens from other systems are rejected")
	}

	if !c.RefreshToken.Enabled {
		add("refresh_disabled", LintInfo, "clients must log in again when the access token expires")
	} else {
		if c.RefreshToken.TTL > 30*24*time.Hour {
			add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 30 days")
		}
		if c.RefreshToken.TTL <= c.JWT.AccessTTL {
			add("refresh_shorter_than_access", LintHigh, "refresh tokens expire before the access tokens they renew")
		}
	}

	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmBcrypt:
		if c.Password.BcryptCost < 10 {
			add("bcrypt_cost_low", LintWarn, "bcrypt cost below 10 is cheap to brute force")
		}
	case password.AlgorithmArgon2id:
		if c.Password.Argon2.Memory < 64*1024 {
			add("argon2_memory_low", LintWarn, "argon2id memory below 64 MiB")
		}
	}
	if c.Password.Policy.MinLength < 8 {
		add("password_min_length_low", LintWarn, "passwords shorter than 8 characters are accepted")
	}
	if !c.Password.UpgradeOnLogin {
		add("password_upgrade_off", LintInfo, "hashes made with old parameters are never upgraded")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication events are not audited")
	}

	return ws
}
