package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/fastauth"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FASTAUTH_JWT_PRIVATE_KEY", testKey)

	f, err := Load(WithSearchPaths())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := f.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults plus key should validate: %v", err)
	}

	want := fastauth.DefaultConfig()
	if cfg.JWT.AccessTTL != want.JWT.AccessTTL || cfg.RefreshToken.TTL != want.RefreshToken.TTL {
		t.Fatalf("unexpected ttls %v / %v", cfg.JWT.AccessTTL, cfg.RefreshToken.TTL)
	}
	if cfg.Password.Policy != want.Password.Policy {
		t.Fatalf("policy = %+v, want %+v", cfg.Password.Policy, want.Password.Policy)
	}
	if f.Store.Driver != "memory" || f.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected store/http defaults %+v %+v", f.Store, f.HTTP)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
jwt:
  access_ttl: 5m
  issuer: yaml-issuer
  private_key: ` + testKey + `
refresh:
  enabled: false
password:
  bcrypt_cost: 10
  policy:
    min_length: 12
identity:
  require_username: true
store:
  driver: sqlite
  dsn: "file::memory:"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FASTAUTH_JWT_ISSUER", "env-issuer")
	t.Setenv("FASTAUTH_PASSWORD_BCRYPT_COST", "11")

	f, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := f.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}

	if cfg.JWT.AccessTTL != 5*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.Issuer != "env-issuer" {
		t.Fatalf("env should override yaml, got %q", cfg.JWT.Issuer)
	}
	if cfg.Password.BcryptCost != 11 {
		t.Fatalf("BcryptCost = %d", cfg.Password.BcryptCost)
	}
	if cfg.Password.Policy.MinLength != 12 || !cfg.Password.Policy.RequireDigit {
		t.Fatalf("policy merge wrong: %+v", cfg.Password.Policy)
	}
	if cfg.RefreshToken.Enabled || !cfg.Identity.RequireUsername {
		t.Fatalf("bools not applied: %+v %+v", cfg.RefreshToken, cfg.Identity)
	}
	if f.Store.Driver != "sqlite" || f.Store.DSN != "file::memory:" {
		t.Fatalf("store = %+v", f.Store)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "FASTAUTH_JWT_PRIVATE_KEY=" + testKey + "\nFASTAUTH_REFRESH_TTL=48h\nFASTAUTH_LOGGING_LEVEL=info\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("FASTAUTH_LOGGING_LEVEL", "warn")
	t.Cleanup(func() {
		os.Unsetenv("FASTAUTH_JWT_PRIVATE_KEY")
		os.Unsetenv("FASTAUTH_REFRESH_TTL")
	})

	f, err := Load(WithEnvFile(envPath), WithSearchPaths())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.JWT.PrivateKey != testKey {
		t.Fatalf("private key not loaded from .env")
	}
	if f.Refresh.TTL != 48*time.Hour {
		t.Fatalf("Refresh.TTL = %v", f.Refresh.TTL)
	}
	if f.Logging.Level != "warn" {
		t.Fatalf("Logging.Level = %q, want process env value", f.Logging.Level)
	}
}

func TestLoadMissingExplicitFiles(t *testing.T) {
	if _, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yml"))); err == nil {
		t.Fatal("expected error for missing config file")
	}
	if _, err := Load(WithEnvFile(filepath.Join(t.TempDir(), "nope.env"))); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestKeyMaterialFromFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "hs.key")
	if err := os.WriteFile(keyPath, []byte(testKey), 0o600); err != nil {
		t.Fatal(err)
	}

	f := &File{JWT: JWT{PrivateKeyFile: keyPath}}
	cfg, err := f.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if string(cfg.JWT.PrivateKey) != testKey {
		t.Fatalf("PrivateKey = %q", cfg.JWT.PrivateKey)
	}

	f.JWT.PrivateKey = testKey
	if _, err := f.EngineConfig(); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}

	f = &File{JWT: JWT{PublicKeyFile: filepath.Join(dir, "missing.pem")}}
	if _, err := f.EngineConfig(); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
