package auth

import (
	"strings"

	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const BearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value. It
// inspects nothing but the prefix.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", utils.Unauthorized("Missing authorization token", nil)
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", utils.Unauthorized("Authorization token must start with '"+BearerPrefix+"'", nil)
	}
	return strings.TrimPrefix(header, BearerPrefix), nil
}
