package password

import (
	"errors"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// cheapConfig keeps the suite fast while staying above the floors.
func cheapConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestArgon2VerifyWrongPassword(t *testing.T) {
	hasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	oldHasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2(new) error: %v", err)
	}

	needsUpgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker hash parameters")
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestArgon2VerifyMalformedHash(t *testing.T) {
	hasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Verify("password", "not-a-phc-hash"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("err = %v, want ErrUnsupportedHash", err)
	}
	if _, err := hasher.Verify("password", "$2a$04$abcdefghijklmnopqrstuu"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("bcrypt hash err = %v, want ErrUnsupportedHash", err)
	}
}

func TestArgon2VerifyWrongVersion(t *testing.T) {
	hasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("version-test", wrongVersion); err == nil {
		t.Fatal("expected unsupported version verification to fail")
	}
}

func TestArgon2RejectsDuplicateParameters(t *testing.T) {
	if _, err := parseParams("m=8192,m=8192,p=1"); err == nil {
		t.Fatal("expected duplicate parameter to be rejected")
	}
}

func TestArgon2VerifiesPaddedEncoding(t *testing.T) {
	hasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("padded-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// StdEncoding pads a 16-byte salt with two bytes and a 32-byte key with one.
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	ok, err := hasher.Verify("padded-test", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("Verify padded: ok=%v err=%v", ok, err)
	}
}

func TestArgon2ConfigFloors(t *testing.T) {
	cfg := secureConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
	cfg = secureConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}

func TestArgon2MaxPasswordBytes(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash err = %v, want ErrPasswordTooLong", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected exactly-max password to be accepted: %v", err)
	}
	if ok, err := hasher.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify failed for max-length password: ok=%v err=%v", ok, err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify err = %v, want ErrPasswordTooLong", err)
	}
}

func TestArgon2DefaultMaxPasswordBytes(t *testing.T) {
	hasher, err := NewArgon2(cheapConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
}
