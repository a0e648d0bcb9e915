package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

var (
	// ErrInvalidValue is returned for ciphertext shorter than the nonce.
	ErrInvalidValue = errors.New("invalid value")

	// ErrDecryptFailed is returned when the box fails authentication.
	ErrDecryptFailed = errors.New("failed to decrypt value")
)

// Encryption opens values LiteLLM sealed with NaCl secretbox. The box key is
// sha256 of the proxy's signing key; stored values are base64(nonce || box).
type Encryption struct {
	key [32]byte
}

// NewEncryption derives the box key from signingKey.
func NewEncryption(signingKey string) (*Encryption, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("signing key cannot be empty")
	}
	return &Encryption{key: sha256.Sum256([]byte(signingKey))}, nil
}

// Encrypt seals plaintext with a random nonce and returns it base64 encoded.
func (e *Encryption) Encrypt(plaintext string) (string, error) {
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &e.key)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 value. Empty input decrypts to "".
func (e *Encryption) Decrypt(valueBase64 string) (string, error) {
	value, err := decodeBase64(valueBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(value) == 0 {
		return "", nil
	}

	if len(value) < nonceLength {
		return "", ErrInvalidValue
	}

	var nonce [nonceLength]byte
	copy(nonce[:], value[:nonceLength])

	plaintext, ok := secretbox.Open(nil, value[nonceLength:], &nonce, &e.key)
	if !ok {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// decodeBase64 accepts both alphabets, padded or not. LiteLLM writes URL-safe.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 value")
}
