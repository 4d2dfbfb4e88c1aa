package jwt

import (
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodRS256   SigningMethod = "rs256"
	MethodEd25519 SigningMethod = "ed25519"
)

const minHMACKeyBytes = 32

var (
	// ErrInvalid wraps every verification failure except expiry.
	ErrInvalid = errors.New("jwt: invalid token")

	// ErrExpired is returned for well-formed tokens past exp (plus leeway).
	ErrExpired = errors.New("jwt: token expired")

	// ErrVerifyOnly is returned by CreateAccess on a manager without a
	// private key.
	ErrVerifyOnly = errors.New("jwt: manager has no signing key")
)

// Config describes signing and verification. PrivateKey holds the HMAC
// secret for hs256, a PEM key for rs256, and a raw or PEM key for ed25519.
// PublicKey is optional when it can be derived from PrivateKey. VerifyKeys
// maps kid to public key (or secret) and takes precedence over PublicKey.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Subject is the identity an access token asserts.
type Subject struct {
	UserID    string
	Email     string
	Username  string
	CreatedAt time.Time
}

// AccessClaims is the access token payload. The user id is the standard
// sub claim.
type AccessClaims struct {
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens. It is immutable after NewManager
// and safe for concurrent use.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	verifyKeys map[string]any
}

// NewManager validates cfg and pre-parses all key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: access TTL must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("jwt: MaxFutureIAT must be within (0, 24h]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}

	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		m.method = jwt.SigningMethodHS256
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("jwt: hs256 secret must be at least %d bytes", minHMACKeyBytes)
		}
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodRS256:
		m.method = jwt.SigningMethodRS256
		if len(cfg.PrivateKey) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
			if err != nil {
				return nil, errors.New("jwt: invalid rsa private key")
			}
			m.signKey = priv
			m.verifyKey = &priv.PublicKey
		}
		if len(cfg.PublicKey) > 0 {
			if m.verifyKey, err = parseVerifyKey(cfg.SigningMethod, cfg.PublicKey); err != nil {
				return nil, err
			}
		}
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			if m.verifyKey, err = parseVerifyKey(cfg.SigningMethod, cfg.PublicKey); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	if len(cfg.VerifyKeys) > 0 {
		m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("jwt: verify key map contains empty kid")
			}
			parsed, err := parseVerifyKey(cfg.SigningMethod, key)
			if err != nil {
				return nil, fmt.Errorf("jwt: verify key for kid %q: %w", kid, err)
			}
			m.verifyKeys[kid] = parsed
		}
		if cfg.KeyID != "" {
			if _, ok := m.verifyKeys[cfg.KeyID]; !ok {
				return nil, errors.New("jwt: KeyID is not present in VerifyKeys")
			}
		} else if m.signKey != nil {
			// Verification looks keys up by kid, so unlabeled tokens would never verify.
			return nil, errors.New("jwt: KeyID is required when signing with VerifyKeys set")
		}
	}

	if m.verifyKey == nil && m.verifyKeys == nil {
		return nil, fmt.Errorf("jwt: %s requires a private key, public key or verify key set", cfg.SigningMethod)
	}

	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CanSign reports whether the manager holds a signing key.
func (m *Manager) CanSign() bool {
	return m.signKey != nil
}

// CreateAccess signs an access token for sub and returns it with its expiry.
func (m *Manager) CreateAccess(sub Subject) (string, time.Time, error) {
	if m.signKey == nil {
		return "", time.Time{}, ErrVerifyOnly
	}

	now := time.Now()
	claims := AccessClaims{
		Email:    sub.Email,
		Username: sub.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if !sub.CreatedAt.IsZero() {
		claims.CreatedAt = sub.CreatedAt.Unix()
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseAccess verifies tokenStr and returns its claims. Failures wrap
// [ErrExpired] or [ErrInvalid].
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalid)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}

	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if m.verifyKeys != nil {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if m.config.KeyID != "" {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey, nil
}

func parseVerifyKey(method SigningMethod, key []byte) (any, error) {
	switch method {
	case MethodHS256:
		if len(key) < minHMACKeyBytes {
			return nil, fmt.Errorf("jwt: hs256 secret must be at least %d bytes", minHMACKeyBytes)
		}
		return key, nil
	case MethodRS256:
		return parseRSAPublicKey(key)
	default:
		return parseEdPublicKey(key)
	}
}

func parseRSAPublicKey(key []byte) (*rsa.PublicKey, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid rsa public key")
	}
	return pub, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
