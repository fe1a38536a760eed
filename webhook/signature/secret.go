package signature

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// SecretPrefix marks Standard Webhooks symmetric secrets used by the payment provider
	SecretPrefix = "whsec_"

	MinSecretBytes = 24
	MaxSecretBytes = 64
)

// Secret is the decoded key material of a whsec_ secret
type Secret []byte

// GenerateSecret creates a random secret of size bytes, for operators
// provisioning a new payment provider endpoint
func GenerateSecret(size int) (Secret, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	s := make(Secret, size)
	if _, err := rand.Read(s); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return s, nil
}

// ParseSecret decodes a whsec_-prefixed base64 secret. An empty value
// returns ErrMissingSecret.
func ParseSecret(encoded string) (Secret, error) {
	if encoded == "" {
		return nil, ErrMissingSecret
	}
	b64, ok := strings.CutPrefix(encoded, SecretPrefix)
	if !ok {
		return nil, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	s, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 secret: %w", err)
	}
	if err := checkSize(len(s)); err != nil {
		return nil, err
	}
	return Secret(s), nil
}

// String encodes the secret back to its whsec_ form
func (s Secret) String() string {
	return SecretPrefix + base64.StdEncoding.EncodeToString(s)
}

func checkSize(n int) error {
	if n < MinSecretBytes || n > MaxSecretBytes {
		return fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	return nil
}
