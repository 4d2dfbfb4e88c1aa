package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"
)

func rsaPEM(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func TestCreateAccessClaims(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "fastauth",
		Audience:      "api",
		KeyID:         "v1",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	token, exp, err := m.CreateAccess(Subject{UserID: "u-42", Email: "a@example.com", Username: "alice", CreatedAt: created})
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if d := time.Until(exp); d < 14*time.Minute || d > 15*time.Minute {
		t.Fatalf("expiry %v out of range", d)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u-42" || claims.Email != "a@example.com" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.CreatedAt != created.Unix() {
		t.Fatalf("created_at = %d, want %d", claims.CreatedAt, created.Unix())
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
	if claims.NotBefore == nil || claims.IssuedAt == nil {
		t.Fatal("expected nbf and iat")
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("exp claim %v != returned expiry %v", claims.ExpiresAt.Time, exp)
	}
}

func TestCreateAccessUniqueJTI(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	a, _, _ := m.CreateAccess(Subject{UserID: "u"})
	b, _, _ := m.CreateAccess(Subject{UserID: "u"})
	if a == b {
		t.Fatal("expected distinct tokens for identical subjects")
	}
}

func TestRS256SignAndVerifyOnly(t *testing.T) {
	privPEM, pubPEM := rsaPEM(t)

	signer, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodRS256, PrivateKey: privPEM})
	if err != nil {
		t.Fatalf("NewManager(signer): %v", err)
	}
	verifier, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodRS256, PublicKey: pubPEM})
	if err != nil {
		t.Fatalf("NewManager(verifier): %v", err)
	}
	if verifier.CanSign() {
		t.Fatal("public-key manager should be verify-only")
	}

	token, _, err := signer.CreateAccess(Subject{UserID: "u-rsa"})
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	claims, err := verifier.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u-rsa" {
		t.Fatalf("sub = %q", claims.Subject)
	}

	if _, _, err := verifier.CreateAccess(Subject{UserID: "x"}); !errors.Is(err, ErrVerifyOnly) {
		t.Fatalf("err = %v, want ErrVerifyOnly", err)
	}
}

func TestRS256RejectsBadPEM(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodRS256, PrivateKey: []byte("garbage")}); err == nil {
		t.Fatal("expected invalid PEM to be rejected")
	}
}

func TestEd25519DerivesPublicKey(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, _, err := m.CreateAccess(Subject{UserID: "u-ed"})
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
}

func TestParseAccessTamperedSignature(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, _, _ := m.CreateAccess(Subject{UserID: "u"})
	dot := strings.LastIndexByte(token, '.')
	repl := byte('A')
	if token[dot+1] == 'A' {
		repl = 'B'
	}
	tampered := token[:dot+1] + string(repl) + token[dot+2:]
	if _, err := m.ParseAccess(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
