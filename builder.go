package fastauth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/fastauth/internal/audit"
	"github.com/MrEthical07/fastauth/jwt"
	"github.com/MrEthical07/fastauth/password"
	"github.com/MrEthical07/fastauth/store"
)

// Builder assembles an [Engine]. A Builder can build exactly once.
type Builder struct {
	config Config

	users  store.UserStore
	tokens store.RefreshTokenStore

	logger    *zerolog.Logger
	auditSink AuditSink
	hasher    password.Hasher

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore uses s for both users and refresh tokens.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.users = s
	b.tokens = s
	return b
}

func (b *Builder) WithUserStore(s store.UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithRefreshTokenStore(s store.RefreshTokenStore) *Builder {
	b.tokens = s
	return b
}

// WithLogger overrides the logger otherwise built from Config.Logging.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHasher replaces the hasher selected by Config.Password.Algorithm.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if cfg.RefreshToken.Enabled && b.tokens == nil {
		return nil, errors.New("refresh token store required when refresh tokens are enabled")
	}

	// -------- LOGGER --------
	var logger zerolog.Logger
	if b.logger != nil {
		logger = *b.logger
	} else {
		l, err := NewLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	logger = logger.With().Str("component", "fastauth").Logger()

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		h, err := newConfiguredHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	// -------- JWT MANAGER --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		users:      b.users,
		tokens:     b.tokens,
		logger:     logger,
		hasher:     hasher,
		dummyHash:  dummyHash,
		jwtManager: jm,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true

	logger.Debug().
		Str("signing_method", cfg.JWT.SigningMethod).
		Bool("refresh_tokens", cfg.RefreshToken.Enabled).
		Bool("can_sign", jm.CanSign()).
		Msg("engine built")

	return engine, nil
}

// newConfiguredHasher hashes with the configured algorithm and keeps
// verifying hashes made by the other one at its defaults.
func newConfiguredHasher(cfg PasswordConfig) (password.Hasher, error) {
	current, err := password.NewHasher(password.HasherConfig{
		Algorithm:  password.Algorithm(cfg.Algorithm),
		BcryptCost: cfg.BcryptCost,
		Argon2:     cfg.Argon2,
	})
	if err != nil {
		return nil, err
	}

	legacyAlgorithm := password.AlgorithmArgon2id
	if password.Algorithm(cfg.Algorithm) == password.AlgorithmArgon2id {
		legacyAlgorithm = password.AlgorithmBcrypt
	}
	legacy, err := password.NewHasher(password.HasherConfig{Algorithm: legacyAlgorithm})
	if err != nil {
		return nil, err
	}
	return password.NewMigrating(current, legacy), nil
}
