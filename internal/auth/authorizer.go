package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// UserLookup finds the LiteLLM user for an identity. A missing user is
// nil, nil.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// KeyLookup resolves a raw virtual key into its key record, authenticated as
// that key. An unknown key is nil, nil.
type KeyLookup interface {
	LookupKey(ctx context.Context, token string) (*models.Key, error)
}

// LiteLLMKeys looks keys up through /key/info as the key itself.
type LiteLLMKeys struct {
	Client *litellm.Client
}

func (k LiteLLMKeys) LookupKey(ctx context.Context, token string) (*models.Key, error) {
	return k.Client.WithAPIKey(token).GetKey(ctx, token)
}

// Authorizer implements every authentication mode. Each mode validates the
// header prefix before anything else sees the token.
type Authorizer struct {
	identity  IdentityProvider
	users     UserLookup
	keys      KeyLookup
	masterKey string
}

func NewAuthorizer(identity IdentityProvider, users UserLookup, keys KeyLookup, masterKey string) *Authorizer {
	return &Authorizer{
		identity:  identity,
		users:     users,
		keys:      keys,
		masterKey: masterKey,
	}
}

// Session authenticates an identity provider session.
func (a *Authorizer) Session(ctx context.Context, header string) (SessionAuth, error) {
	token, err := BearerToken(header)
	if err != nil {
		return SessionAuth{}, err
	}

	identity, err := a.identity.Verify(ctx, token)
	if errors.Is(err, ErrNoIdentity) {
		return SessionAuth{}, utils.Unauthorized("Invalid authorization token", err)
	}
	if err != nil {
		return SessionAuth{}, utils.Unauthorized("Failed to authorize", err)
	}
	return SessionAuth{Identity: *identity}, nil
}

// User authenticates a session whose user completed registration.
func (a *Authorizer) User(ctx context.Context, header string) (UserAuth, error) {
	session, err := a.Session(ctx, header)
	if err != nil {
		return UserAuth{}, err
	}

	user, err := a.users.GetUser(ctx, session.Identity.ID)
	if err != nil {
		return UserAuth{}, utils.Internal("Failed to get user", err)
	}
	if user == nil {
		return UserAuth{}, utils.Forbidden("Incomplete user registration")
	}
	return UserAuth{Identity: session.Identity, User: *user}, nil
}

// Key authenticates a LiteLLM virtual key.
func (a *Authorizer) Key(ctx context.Context, header string) (KeyAuth, error) {
	token, err := BearerToken(header)
	if err != nil {
		return KeyAuth{}, err
	}

	key, err := a.keys.LookupKey(ctx, token)
	if err != nil {
		return KeyAuth{}, utils.Unauthorized("Failed to authorize", err)
	}
	if key == nil {
		return KeyAuth{}, utils.Unauthorized("Invalid authorization token", nil)
	}
	return KeyAuth{Key: *key, Token: token}, nil
}

// ServiceAccount authenticates a key that belongs to an unblocked service
// account.
func (a *Authorizer) ServiceAccount(ctx context.Context, header string) (ServiceAccountAuth, error) {
	ka, err := a.Key(ctx, header)
	if err != nil {
		return ServiceAccountAuth{}, err
	}
	if !ka.Key.IsServiceAccount() {
		return ServiceAccountAuth{}, utils.Forbidden("Only service account can access this endpoint")
	}
	if ka.Key.IsBlocked() {
		return ServiceAccountAuth{}, utils.Forbidden("Service account is blocked")
	}
	return ServiceAccountAuth{Key: ka.Key, Token: ka.Token}, nil
}

// Admin authenticates the LiteLLM master key.
func (a *Authorizer) Admin(_ context.Context, header string) (AdminAuth, error) {
	token, err := BearerToken(header)
	if err != nil {
		return AdminAuth{}, err
	}
	if a.masterKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.masterKey)) != 1 {
		return AdminAuth{}, utils.Unauthorized("Invalid authorization token", nil)
	}
	return AdminAuth{}, nil
}
