package storage

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryption(t *testing.T) {
	enc, err := NewEncryption("sk-master-key")
	if err != nil {
		t.Fatalf("Failed to create encryption: %v", err)
	}

	plaintext := "https://replica-1.example.com/v1"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Failed to decrypt: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("Decrypted text doesn't match original. Got %s, want %s", decrypted, plaintext)
	}
}

func TestDecryptStandardAlphabet(t *testing.T) {
	enc, _ := NewEncryption("sk-master-key")

	ciphertext, _ := enc.Encrypt("value")
	raw, _ := base64.URLEncoding.DecodeString(ciphertext)

	got, err := enc.Decrypt(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("Failed to decrypt standard base64: %v", err)
	}
	if got != "value" {
		t.Errorf("Decrypt() = %s, want value", got)
	}
}

func TestDecryptEmpty(t *testing.T) {
	enc, _ := NewEncryption("sk-master-key")

	got, err := enc.Decrypt("")
	if err != nil {
		t.Fatalf("Decrypt(\"\") error = %v", err)
	}
	if got != "" {
		t.Errorf("Decrypt(\"\") = %q, want empty", got)
	}
}

func TestDecryptTooShort(t *testing.T) {
	enc, _ := NewEncryption("sk-master-key")

	short := base64.StdEncoding.EncodeToString(make([]byte, 23))
	if _, err := enc.Decrypt(short); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Decrypt(short) error = %v, want ErrInvalidValue", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	enc, _ := NewEncryption("sk-master-key")

	ciphertext, _ := enc.Encrypt("sk-backend-secret")
	raw, _ := base64.URLEncoding.DecodeString(ciphertext)

	// Flip one bit in every position after the nonce; none may decrypt.
	for i := nonceLength; i < len(raw); i++ {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01

		got, err := enc.Decrypt(base64.URLEncoding.EncodeToString(tampered))
		if !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("byte %d: Decrypt() = %q, %v; want ErrDecryptFailed", i, got, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc1, _ := NewEncryption("key-one")
	enc2, _ := NewEncryption("key-two")

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecryptFailed", err)
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	enc, _ := NewEncryption("sk-master-key")

	if _, err := enc.Decrypt("%%%not-base64%%%"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestNewEncryptionEmptyKey(t *testing.T) {
	if _, err := NewEncryption(""); err == nil {
		t.Error("expected error for empty signing key")
	}
}
