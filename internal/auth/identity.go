package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// ErrNoIdentity is returned by an IdentityProvider that accepted the token
// but found no user behind it.
var ErrNoIdentity = errors.New("token carries no user")

// IdentityProvider turns a session token into the identity it belongs to.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// SupabaseProvider asks Supabase Auth who owns a token.
type SupabaseProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewSupabaseProvider(baseURL, anonKey string, timeout time.Duration) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify calls GET /auth/v1/user with the token.
func (p *SupabaseProvider) Verify(ctx context.Context, token string) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", BearerPrefix+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("supabase get user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding supabase user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrNoIdentity
	}
	return &models.Identity{ID: user.ID, Email: user.Email}, nil
}
