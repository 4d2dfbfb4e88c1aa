package fastauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/fastauth/password"
)

// Config holds every engine setting. Start from [DefaultConfig] and adjust;
// the builder copies it, so later changes to the original have no effect.
type Config struct {
	JWT          JWTConfig
	RefreshToken RefreshTokenConfig
	Password     PasswordConfig
	Identity     IdentityConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Logging      LoggingConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing and verification.
//
// PrivateKey is the HMAC secret for hs256 (at least 32 bytes), a PEM key for
// rs256 and a raw or PEM key for ed25519. Asymmetric engines may be built
// with only PublicKey or VerifyKeys, in which case they verify but cannot
// issue tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default), "rs256", "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
REFRESH TOKEN CONFIG
====================================
*/

// RefreshTokenConfig toggles opaque refresh tokens.
type RefreshTokenConfig struct {
	Enabled bool
	TTL     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and the policy new passwords
// must satisfy. Hashes made by the algorithm not selected are still
// verified, and with UpgradeOnLogin they are rehashed on the next login.
type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Config
	Policy         password.Policy
	UpgradeOnLogin bool
}

/*
====================================
IDENTITY CONFIG
====================================
*/

type IdentityConfig struct {
	RequireUsername    bool
	AllowUsernameLogin bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns HS256 access tokens valid for 15 minutes, 7-day
// refresh tokens, bcrypt at cost 12 with [password.DefaultPolicy], optional
// usernames that may be used to log in, metrics on and audit off. A signing
// key must still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		RefreshToken: RefreshTokenConfig{
			Enabled: true,
			TTL:     7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:      string(password.AlgorithmBcrypt),
			BcryptCost:     password.DefaultBcryptCost,
			Argon2:         password.DefaultArgon2Config(),
			Policy:         password.DefaultPolicy(),
			UpgradeOnLogin: true,
		},
		Identity: IdentityConfig{
			RequireUsername:    false,
			AllowUsernameLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "disabled",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "rs256", "ed25519":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return fmt.Errorf("%s requires PrivateKey, PublicKey or VerifyKeys", c.JWT.SigningMethod)
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.VerifyKeys) > 0 && len(c.JWT.PrivateKey) > 0 && c.JWT.KeyID == "" {
		return errors.New("JWT KeyID is required when PrivateKey and VerifyKeys are both set")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Refresh tokens
	if c.RefreshToken.Enabled && c.RefreshToken.TTL <= 0 {
		return errors.New("RefreshToken TTL must be > 0 when refresh tokens are enabled")
	}

	// Password
	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmBcrypt:
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be within [4, 31]")
		}
		if c.Password.Policy.MaxBytes <= 0 || c.Password.Policy.MaxBytes > 72 {
			return errors.New("Password Policy MaxBytes must be within [1, 72] for bcrypt")
		}
	case password.AlgorithmArgon2id:
		if _, err := password.NewArgon2(c.Password.Argon2); err != nil {
			return fmt.Errorf("Password Argon2: %w", err)
		}
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.Policy.MinLength < 1 {
		return errors.New("Password Policy MinLength must be >= 1")
	}
	if c.Password.Policy.MaxBytes > 0 && c.Password.Policy.MaxBytes < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxBytes must be >= MinLength")
	}
	if c.Password.Policy.RequiredUniqueChars < 0 {
		return errors.New("Password Policy RequiredUniqueChars must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Logging
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return errors.New("Logging Format must be 'json' or 'console'")
	}

	return nil
}
