package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/password"
)

// File mirrors the on-disk and environment layout.
type File struct {
	JWT      JWT      `mapstructure:"jwt"`
	Refresh  Refresh  `mapstructure:"refresh"`
	Password Password `mapstructure:"password"`
	Identity Identity `mapstructure:"identity"`
	Audit    Audit    `mapstructure:"audit"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Logging  Logging  `mapstructure:"logging"`
	Store    Store    `mapstructure:"store"`
	HTTP     HTTP     `mapstructure:"http"`
}

// JWT keys may be given inline or as file paths, not both.
type JWT struct {
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	SigningMethod  string        `mapstructure:"signing_method"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	PublicKey      string        `mapstructure:"public_key"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	Leeway         time.Duration `mapstructure:"leeway"`
	KeyID          string        `mapstructure:"key_id"`
}

type Refresh struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type Password struct {
	Algorithm      string `mapstructure:"algorithm"`
	BcryptCost     int    `mapstructure:"bcrypt_cost"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
	Argon2         Argon2 `mapstructure:"argon2"`
	Policy         Policy `mapstructure:"policy"`
}

type Argon2 struct {
	Memory      uint32 `mapstructure:"memory"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type Policy struct {
	MinLength              int  `mapstructure:"min_length"`
	MaxBytes               int  `mapstructure:"max_bytes"`
	RequireDigit           bool `mapstructure:"require_digit"`
	RequireLowercase       bool `mapstructure:"require_lowercase"`
	RequireUppercase       bool `mapstructure:"require_uppercase"`
	RequireNonAlphanumeric bool `mapstructure:"require_non_alphanumeric"`
	RequiredUniqueChars    int  `mapstructure:"required_unique_chars"`
}

type Identity struct {
	RequireUsername    bool `mapstructure:"require_username"`
	AllowUsernameLogin bool `mapstructure:"allow_username_login"`
}

type Audit struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type Metrics struct {
	Enabled           bool `mapstructure:"enabled"`
	LatencyHistograms bool `mapstructure:"latency_histograms"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store selects the persistence backend for the bundled binaries.
type Store struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, postgres, mongo
	DSN    string `mapstructure:"dsn"`
	// RedisAddr, when set, moves refresh tokens to Redis.
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	Database    string `mapstructure:"database"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// defaults returns the key/value pairs registered with viper before any
// source is read. Viper only binds environment variables for known keys.
func defaults() map[string]any {
	d := fastauth.DefaultConfig()
	return map[string]any{
		"jwt.access_ttl":       d.JWT.AccessTTL,
		"jwt.signing_method":   d.JWT.SigningMethod,
		"jwt.private_key":      "",
		"jwt.private_key_file": "",
		"jwt.public_key":       "",
		"jwt.public_key_file":  "",
		"jwt.issuer":           d.JWT.Issuer,
		"jwt.audience":         d.JWT.Audience,
		"jwt.leeway":           d.JWT.Leeway,
		"jwt.key_id":           d.JWT.KeyID,

		"refresh.enabled": d.RefreshToken.Enabled,
		"refresh.ttl":     d.RefreshToken.TTL,

		"password.algorithm":                       d.Password.Algorithm,
		"password.bcrypt_cost":                     d.Password.BcryptCost,
		"password.upgrade_on_login":                d.Password.UpgradeOnLogin,
		"password.argon2.memory":                   d.Password.Argon2.Memory,
		"password.argon2.time":                     d.Password.Argon2.Time,
		"password.argon2.parallelism":              d.Password.Argon2.Parallelism,
		"password.argon2.salt_length":              d.Password.Argon2.SaltLength,
		"password.argon2.key_length":               d.Password.Argon2.KeyLength,
		"password.policy.min_length":               d.Password.Policy.MinLength,
		"password.policy.max_bytes":                d.Password.Policy.MaxBytes,
		"password.policy.require_digit":            d.Password.Policy.RequireDigit,
		"password.policy.require_lowercase":        d.Password.Policy.RequireLowercase,
		"password.policy.require_uppercase":        d.Password.Policy.RequireUppercase,
		"password.policy.require_non_alphanumeric": d.Password.Policy.RequireNonAlphanumeric,
		"password.policy.required_unique_chars":    d.Password.Policy.RequiredUniqueChars,

		"identity.require_username":     d.Identity.RequireUsername,
		"identity.allow_username_login": d.Identity.AllowUsernameLogin,

		"audit.enabled":      d.Audit.Enabled,
		"audit.buffer_size":  d.Audit.BufferSize,
		"audit.drop_if_full": d.Audit.DropIfFull,

		"metrics.enabled":            d.Metrics.Enabled,
		"metrics.latency_histograms": d.Metrics.EnableLatencyHistograms,

		"logging.level":  d.Logging.Level,
		"logging.format": d.Logging.Format,

		"store.driver":       "memory",
		"store.dsn":          "",
		"store.redis_addr":   "",
		"store.redis_prefix": "",
		"store.database":     "fastauth",

		"http.addr": ":8080",
	}
}

// EngineConfig converts f into a fastauth.Config, reading key files. The
// result is not validated; the builder does that.
func (f *File) EngineConfig() (fastauth.Config, error) {
	cfg := fastauth.DefaultConfig()

	privateKey, err := keyMaterial("jwt.private_key", f.JWT.PrivateKey, f.JWT.PrivateKeyFile)
	if err != nil {
		return fastauth.Config{}, err
	}
	publicKey, err := keyMaterial("jwt.public_key", f.JWT.PublicKey, f.JWT.PublicKeyFile)
	if err != nil {
		return fastauth.Config{}, err
	}

	cfg.JWT = fastauth.JWTConfig{
		AccessTTL:     f.JWT.AccessTTL,
		SigningMethod: strings.ToLower(strings.TrimSpace(f.JWT.SigningMethod)),
		PrivateKey:    privateKey,
		PublicKey:     publicKey,
		Issuer:        f.JWT.Issuer,
		Audience:      f.JWT.Audience,
		Leeway:        f.JWT.Leeway,
		KeyID:         f.JWT.KeyID,
	}
	cfg.RefreshToken = fastauth.RefreshTokenConfig{
		Enabled: f.Refresh.Enabled,
		TTL:     f.Refresh.TTL,
	}
	cfg.Password = fastauth.PasswordConfig{
		Algorithm:  strings.ToLower(strings.TrimSpace(f.Password.Algorithm)),
		BcryptCost: f.Password.BcryptCost,
		Argon2: password.Config{
			Memory:      f.Password.Argon2.Memory,
			Time:        f.Password.Argon2.Time,
			Parallelism: f.Password.Argon2.Parallelism,
			SaltLength:  f.Password.Argon2.SaltLength,
			KeyLength:   f.Password.Argon2.KeyLength,
		},
		Policy: password.Policy{
			MinLength:              f.Password.Policy.MinLength,
			MaxBytes:               f.Password.Policy.MaxBytes,
			RequireDigit:           f.Password.Policy.RequireDigit,
			RequireLowercase:       f.Password.Policy.RequireLowercase,
			RequireUppercase:       f.Password.Policy.RequireUppercase,
			RequireNonAlphanumeric: f.Password.Policy.RequireNonAlphanumeric,
			RequiredUniqueChars:    f.Password.Policy.RequiredUniqueChars,
		},
		UpgradeOnLogin: f.Password.UpgradeOnLogin,
	}
	cfg.Identity = fastauth.IdentityConfig{
		RequireUsername:    f.Identity.RequireUsername,
		AllowUsernameLogin: f.Identity.AllowUsernameLogin,
	}
	cfg.Audit = fastauth.AuditConfig{
		Enabled:    f.Audit.Enabled,
		BufferSize: f.Audit.BufferSize,
		DropIfFull: f.Audit.DropIfFull,
	}
	cfg.Metrics = fastauth.MetricsConfig{
		Enabled:                 f.Metrics.Enabled,
		EnableLatencyHistograms: f.Metrics.LatencyHistograms,
	}
	cfg.Logging = fastauth.LoggingConfig{
		Level:  f.Logging.Level,
		Format: f.Logging.Format,
	}
	return cfg, nil
}

func keyMaterial(name, inline, path string) ([]byte, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("config: %s and %s_file are mutually exclusive", name, name)
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s_file: %w", name, err)
		}
		if len(b) == 0 {
			return nil, errors.New("config: " + name + "_file is empty")
		}
		return b, nil
	case inline != "":
		return []byte(inline), nil
	default:
		return nil, nil
	}
}
