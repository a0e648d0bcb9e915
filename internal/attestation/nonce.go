package attestation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/think-in-universe/nearai-cloud-server/internal/providers"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// ParseNonce validates a client nonce, or generates a random one when s is
// empty. The result is always 32 bytes, hex encoded.
func ParseNonce(s string) (string, error) {
	if s == "" {
		buf := make([]byte, providers.NonceSize)
		if _, err := rand.Read(buf); err != nil {
			return "", utils.Internal("Failed to generate nonce", err)
		}
		return hex.EncodeToString(buf), nil
	}

	for _, c := range s {
		if !isHexDigit(c) {
			return "", utils.BadRequest(fmt.Sprintf("Nonce must be hex-encoded: %s", s))
		}
	}
	if len(s) != providers.NonceSize*2 {
		return "", utils.BadRequest(fmt.Sprintf("Nonce must be %d bytes", providers.NonceSize))
	}
	return s, nil
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
