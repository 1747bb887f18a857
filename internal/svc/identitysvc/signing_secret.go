package identitysvc

import (
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SecretType is the PEM block type of a persisted signing secret.
const SecretType = "TOKEN SIGNING SECRET"

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 32

var (
	// ErrSecretTooShort is returned for secrets shorter than MinSecretLength.
	ErrSecretTooShort = errors.New("signing secret too short")
	// ErrInvalidSecretFile is returned when a secret file holds no secret PEM block.
	ErrInvalidSecretFile = errors.New("invalid signing secret file")
)

// SigningSecret is the immutable key tokens are signed with.
type SigningSecret struct {
	key []byte
}

// NewSigningSecret copies key into a new SigningSecret.
func NewSigningSecret(key []byte) (SigningSecret, error) {
	if len(key) < MinSecretLength {
		return SigningSecret{}, fmt.Errorf("%w: %d < %d bytes", ErrSecretTooShort, len(key), MinSecretLength)
	}

	return SigningSecret{key: append([]byte(nil), key...)}, nil
}

// GenerateSigningSecret creates a random secret of MinSecretLength bytes.
func GenerateSigningSecret() (SigningSecret, error) {
	key := make([]byte, MinSecretLength)
	if _, err := rand.Read(key); err != nil {
		return SigningSecret{}, fmt.Errorf("read random: %w", err)
	}

	return SigningSecret{key: key}, nil
}

// bytes returns a copy of the key.
func (s SigningSecret) bytes() []byte {
	return append([]byte(nil), s.key...)
}

// IsZero reports whether the secret was never initialized.
func (s SigningSecret) IsZero() bool {
	return len(s.key) == 0
}

// DecodeSigningSecret reads a PEM-encoded signing secret.
func DecodeSigningSecret(r io.Reader) (SigningSecret, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return SigningSecret{}, fmt.Errorf("read secret: %w", err)
	}

	block, _ := pem.Decode(buf)
	if block == nil || block.Type != SecretType {
		return SigningSecret{}, ErrInvalidSecretFile
	}

	return NewSigningSecret(block.Bytes)
}

// EncodeSigningSecret encodes a signing secret in PEM format.
func EncodeSigningSecret(s SigningSecret) []byte {
	//nolint:exhaustruct
	return pem.EncodeToMemory(&pem.Block{
		Type:  SecretType,
		Bytes: s.key,
	})
}

// LoadSigningSecret resolves the process signing secret. A configured value wins.
// Otherwise the secret is read from path, and when that file does not exist a new
// secret is generated and written there with mode 0600.
func LoadSigningSecret(value, path string) (SigningSecret, error) {
	if value != "" {
		return NewSigningSecret([]byte(value))
	}

	// Try decode existing secret
	secretFile, err := os.Open(path)
	if err == nil {
		defer secretFile.Close()

		secret, err := DecodeSigningSecret(secretFile)
		if err != nil {
			return SigningSecret{}, fmt.Errorf("decode signing secret: %w", err)
		}

		return secret, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return SigningSecret{}, fmt.Errorf("open secret file: %w", err)
	}

	// Generate new secret
	secret, err := GenerateSigningSecret()
	if err != nil {
		return SigningSecret{}, fmt.Errorf("generate signing secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return SigningSecret{}, fmt.Errorf("create secret dir: %w", err)
	}

	// O_EXCL keeps a concurrently started process from clobbering the file
	if err := writeNewFile(path, EncodeSigningSecret(secret)); err != nil {
		return SigningSecret{}, fmt.Errorf("write secret file: %w", err)
	}

	return secret, nil
}

func writeNewFile(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}
