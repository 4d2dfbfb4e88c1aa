package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// Config tunes Argon2id. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the input to Hash and Verify. Zero means
	// DefaultMaxPasswordBytes.
	MaxPasswordBytes uint32
}

// DefaultMaxPasswordBytes caps Argon2 input when Config leaves it unset.
const DefaultMaxPasswordBytes = 1024

// DefaultArgon2Config returns 64 MiB, 3 passes, 2 lanes, 16-byte salt and
// 32-byte key.
func DefaultArgon2Config() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes with Argon2id and encodes results as PHC strings.
type Argon2 struct {
	config Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg against the parameter floors.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash uses the raw bytes of password; no Unicode normalization is applied.
func (a *Argon2) Hash(password string) (string, error) {
	if uint32(len(password)) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if uint32(len(password)) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return a.config.Memory > p.memory ||
		a.config.Time > p.time ||
		a.config.Parallelism > p.parallelism ||
		a.config.KeyLength != uint32(len(p.key)), nil
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrUnsupportedHash
	}
	if parts[1] != argon2ID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("password: invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	p.salt, err = decodeB64(parts[4])
	if err != nil || len(p.salt) < int(minSaltLength) {
		return nil, errors.New("password: invalid argon2 salt")
	}
	p.key, err = decodeB64(parts[5])
	if err != nil || len(p.key) == 0 {
		return nil, errors.New("password: invalid argon2 hash")
	}
	return p, nil
}

// decodeB64 accepts both unpadded (PHC) and padded encodings.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func parseParams(part string) (*phc, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("password: invalid argon2 parameters")
	}

	var (
		p    phc
		seen = map[string]bool{}
	)
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return nil, errors.New("password: invalid argon2 parameters")
		}
		seen[k] = true

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return nil, errors.New("password: invalid argon2 memory")
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return nil, errors.New("password: invalid argon2 time")
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return nil, errors.New("password: invalid argon2 parallelism")
			}
			p.parallelism = uint8(n)
		default:
			return nil, errors.New("password: unsupported argon2 parameter")
		}
	}
	return &p, nil
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return errors.New("password: argon2 memory must be >= 8192 KiB")
	case c.Time < minTimeCost:
		return errors.New("password: argon2 time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password: argon2 parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return errors.New("password: argon2 salt length must be >= 16")
	case c.KeyLength < minKeyLength:
		return errors.New("password: argon2 key length must be >= 16")
	}
	return nil
}
