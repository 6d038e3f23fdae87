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
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinLength and MaxLength bound accepted passwords in bytes.
	MinLength = 10
	MaxLength = 1024
)

var (
	ErrTooShort      = errors.New("password must be at least 10 bytes")
	ErrTooLong       = errors.New("password exceeds 1024 bytes")
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production cost parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the enforced floor.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTime:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher is immutable and safe for concurrent use.
type Hasher struct {
	cfg   Config
	dummy string
}

// NewHasher validates cfg and precomputes the hash used to equalize timing for unknown
// accounts.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{cfg: cfg}
	dummy, err := h.Hash("estate-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns a PHC string for plaintext. Bytes are used as given, with no Unicode
// normalization.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if err := checkLength(plaintext); err != nil {
		return "", err
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	p := phc{
		memory:      h.cfg.Memory,
		time:        h.cfg.Time,
		parallelism: h.cfg.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(plaintext, h.cfg.KeyLength)
	return p.String(), nil
}

// Verify reports whether plaintext matches encoded. Only a malformed hash is an error.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if len(plaintext) > MaxLength {
		return false, nil
	}
	computed := p.derive(plaintext, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// VerifyDummy burns the same work as a real verification and always fails.
func (h *Hasher) VerifyDummy(plaintext string) {
	_, _ = h.Verify(plaintext, h.dummy)
}

// NeedsRehash reports whether encoded was produced with weaker parameters than h.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return p.memory < h.cfg.Memory ||
		p.time < h.cfg.Time ||
		p.parallelism < h.cfg.Parallelism ||
		uint32(len(p.key)) != h.cfg.KeyLength, nil
}

func checkLength(plaintext string) error {
	if len(plaintext) < MinLength {
		return ErrTooShort
	}
	if len(plaintext) > MaxLength {
		return ErrTooLong
	}
	return nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(plaintext string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, ErrMalformedHash
	}

	var memorySet, timeSet, parallelismSet bool
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return p, ErrMalformedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKB || memorySet {
				return p, ErrMalformedHash
			}
			p.memory, memorySet = uint32(n), true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTime || timeSet {
				return p, ErrMalformedHash
			}
			p.time, timeSet = uint32(n), true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism || parallelismSet {
				return p, ErrMalformedHash
			}
			p.parallelism, parallelismSet = uint8(n), true
		default:
			return p, ErrMalformedHash
		}
	}
	if !memorySet || !timeSet || !parallelismSet {
		return p, ErrMalformedHash
	}

	salt, err := decodeSegment(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return p, ErrMalformedHash
	}
	key, err := decodeSegment(parts[5])
	if err != nil || uint32(len(key)) < minKeyLength {
		return p, ErrMalformedHash
	}
	p.salt, p.key = salt, key

	return p, nil
}

// decodeSegment accepts padded and unpadded base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
