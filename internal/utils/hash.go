package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix marks a raw LiteLLM virtual key.
const KeyPrefix = "sk-"

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// KeyHash returns the canonical identifier of a LiteLLM key. Raw keys are
// hashed; anything else is assumed to already be a hash.
func KeyHash(keyOrKeyHash string) string {
	if strings.HasPrefix(keyOrKeyHash, KeyPrefix) {
		return HashString(keyOrKeyHash)
	}
	return keyOrKeyHash
}

// IsKeyHash reports whether s looks like a sha256 hex digest.
func IsKeyHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// FullKeyAlias namespaces a user supplied alias with its owner.
func FullKeyAlias(userID, alias string) string {
	return userID + ":" + alias
}

// ShortKeyAlias strips the owner namespace added by FullKeyAlias.
func ShortKeyAlias(userID, alias string) string {
	return strings.TrimPrefix(alias, userID+":")
}
