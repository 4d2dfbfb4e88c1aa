package fastauth

import (
	"testing"
	"time"
)

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with key",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "hs256 short key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "rs256 without keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "verify keys with signer but no kid",
			mutate: func(c *Config) {
				c.JWT.VerifyKeys = map[string][]byte{"k1": c.JWT.PrivateKey}
			},
			wantValid: false,
		},
		{
			name: "verify keys with signer and kid",
			mutate: func(c *Config) {
				c.JWT.KeyID = "k1"
				c.JWT.VerifyKeys = map[string][]byte{"k1": c.JWT.PrivateKey}
			},
			wantValid: true,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "none"
			},
			wantValid: false,
		},
		{
			name: "refresh ttl zero while enabled",
			mutate: func(c *Config) {
				c.RefreshToken.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl zero while disabled",
			mutate: func(c *Config) {
				c.RefreshToken.Enabled = false
				c.RefreshToken.TTL = 0
			},
			wantValid: true,
		},
		{
			name: "bcrypt cost too low",
			mutate: func(c *Config) {
				c.Password.BcryptCost = 3
			},
			wantValid: false,
		},
		{
			name: "bcrypt max bytes over limit",
			mutate: func(c *Config) {
				c.Password.Policy.MaxBytes = 100
			},
			wantValid: false,
		},
		{
			name: "argon2id defaults",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
			},
			wantValid: true,
		},
		{
			name: "argon2id weak memory",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
				c.Password.Argon2.Memory = 1
			},
			wantValid: false,
		},
		{
			name: "unknown algorithm",
			mutate: func(c *Config) {
				c.Password.Algorithm = "md5"
			},
			wantValid: false,
		},
		{
			name: "policy min length zero",
			mutate: func(c *Config) {
				c.Password.Policy.MinLength = 0
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero while enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "logging level invalid",
			mutate: func(c *Config) {
				c.Logging.Level = "loud"
			},
			wantValid: false,
		},
		{
			name: "logging format invalid",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without a signing key should not validate")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	engine, _ := newTestEngine(t, cfg)

	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.AccessTTL = time.Hour

	got := engine.Config()
	if got.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL changed to %v", got.JWT.AccessTTL)
	}
	if got.JWT.PrivateKey[0] != 'k' {
		t.Fatal("engine shares key bytes with caller")
	}

	got.JWT.PrivateKey[0] = 'Y'
	if engine.Config().JWT.PrivateKey[0] != 'k' {
		t.Fatal("Config() must return a copy")
	}
}
