package identitysvc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// PasswordHasher derives verifiable hashes from passwords and per-user salts.
type PasswordHasher interface {
	// GenerateSalt returns a new random salt encoded as text.
	GenerateSalt() (string, error)
	// Hash derives the text-encoded hash of plaintext under salt. It is deterministic.
	Hash(plaintext, salt string) string
	// Verify reports whether expectedHash is the hash of plaintext under salt.
	Verify(plaintext, salt, expectedHash string) bool
}

// HasherConfig holds the Argon2id cost parameters.
type HasherConfig struct {
	Time       uint32 `env:"TIME"        default:"1"     toml:"time"`
	Memory     uint32 `env:"MEMORY"      default:"65536" toml:"memory"` // KiB
	Threads    uint8  `env:"THREADS"     default:"4"     toml:"threads"`
	KeyLength  uint32 `env:"KEY_LENGTH"  default:"32"    toml:"key_length"`
	SaltLength uint32 `env:"SALT_LENGTH" default:"32"    toml:"salt_length"`
}

// Argon2Hasher implements PasswordHasher with Argon2id.
type Argon2Hasher struct {
	cfg HasherConfig
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

// NewArgon2Hasher creates a hasher with the given cost parameters.
func NewArgon2Hasher(cfg HasherConfig) *Argon2Hasher {
	return &Argon2Hasher{cfg: cfg}
}

// GenerateSalt implements PasswordHasher.
func (h *Argon2Hasher) GenerateSalt() (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return base64.StdEncoding.EncodeToString(salt), nil
}

// Hash implements PasswordHasher. The salt is mixed in as its text bytes, so a
// stored salt is used exactly as persisted.
func (h *Argon2Hasher) Hash(plaintext, salt string) string {
	key := argon2.IDKey([]byte(plaintext), []byte(salt), h.cfg.Time, h.cfg.Memory, h.cfg.Threads, h.cfg.KeyLength)

	return base64.StdEncoding.EncodeToString(key)
}

// Verify implements PasswordHasher using a constant-time comparison.
func (h *Argon2Hasher) Verify(plaintext, salt, expectedHash string) bool {
	actual := h.Hash(plaintext, salt)

	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHash)) == 1
}
