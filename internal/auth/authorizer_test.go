package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

type fakeIdentity struct {
	calls      int
	identities map[string]*models.Identity
	err        error
}

func (f *fakeIdentity) Verify(_ context.Context, token string) (*models.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if id, ok := f.identities[token]; ok {
		return id, nil
	}
	return nil, ErrNoIdentity
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUser(_ context.Context, userID string) (*models.User, error) {
	return f[userID], nil
}

type fakeKeys struct {
	calls int
	keys  map[string]*models.Key
	err   error
}

func (f *fakeKeys) LookupKey(_ context.Context, token string) (*models.Key, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.keys[token], nil
}

func (f *fakeKeys) GetKey(_ context.Context, hash string) (*models.Key, error) {
	return f.keys[hash], nil
}

func strPtr(s string) *string { return &s }

func newTestAuthorizer() (*Authorizer, *fakeIdentity, *fakeKeys) {
	identity := &fakeIdentity{identities: map[string]*models.Identity{
		"session-registered": {ID: "user-1", Email: "a@example.com"},
		"session-new":        {ID: "user-2", Email: "b@example.com"},
	}}
	users := fakeUsers{"user-1": {UserID: "user-1"}}
	blocked := true
	keys := &fakeKeys{keys: map[string]*models.Key{
		"sk-personal": {KeyHash: "h1", UserID: strPtr("user-1")},
		"sk-service":  {KeyHash: "h2", Metadata: map[string]any{"service_account_id": "billing"}},
		"sk-blocked":  {KeyHash: "h3", Metadata: map[string]any{"service_account_id": "old"}, Blocked: &blocked},
	}}
	return NewAuthorizer(identity, users, keys, "sk-master"), identity, keys
}

func requireHTTPError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var httpErr *utils.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, status, httpErr.Status)
	assert.Equal(t, message, httpErr.Message)
}

func TestPrefixCheckedBeforeProviders(t *testing.T) {
	a, identity, keys := newTestAuthorizer()
	ctx := context.Background()

	for _, header := range []string{"", "Token sk-personal", "session-registered"} {
		_, err := a.Session(ctx, header)
		require.Error(t, err)
		_, err = a.User(ctx, header)
		require.Error(t, err)
		_, err = a.Key(ctx, header)
		require.Error(t, err)
		_, err = a.ServiceAccount(ctx, header)
		require.Error(t, err)
		_, err = a.Admin(ctx, header)
		require.Error(t, err)
	}

	assert.Zero(t, identity.calls)
	assert.Zero(t, keys.calls)
}

func TestSessionAndUser(t *testing.T) {
	a, identity, _ := newTestAuthorizer()
	ctx := context.Background()

	session, err := a.Session(ctx, "Bearer session-new")
	require.NoError(t, err)
	assert.Equal(t, "user-2", session.Identity.ID)

	_, err = a.User(ctx, "Bearer session-new")
	requireHTTPError(t, err, http.StatusForbidden, "Incomplete user registration")

	ua, err := a.User(ctx, "Bearer session-registered")
	require.NoError(t, err)
	assert.Equal(t, "user-1", ua.User.UserID)
	assert.Equal(t, "a@example.com", ua.Identity.Email)

	_, err = a.Session(ctx, "Bearer unknown")
	requireHTTPError(t, err, http.StatusUnauthorized, "Invalid authorization token")

	identity.err = errors.New("supabase unreachable")
	_, err = a.Session(ctx, "Bearer session-new")
	requireHTTPError(t, err, http.StatusUnauthorized, "Failed to authorize")
	assert.ErrorContains(t, err, "supabase unreachable")
}

func TestKeyModes(t *testing.T) {
	a, _, keys := newTestAuthorizer()
	ctx := context.Background()

	ka, err := a.Key(ctx, "Bearer sk-personal")
	require.NoError(t, err)
	assert.Equal(t, "h1", ka.Key.KeyHash)
	assert.Equal(t, "sk-personal", ka.Token)

	_, err = a.Key(ctx, "Bearer sk-missing")
	requireHTTPError(t, err, http.StatusUnauthorized, "Invalid authorization token")

	_, err = a.ServiceAccount(ctx, "Bearer sk-personal")
	requireHTTPError(t, err, http.StatusForbidden, "Only service account can access this endpoint")

	_, err = a.ServiceAccount(ctx, "Bearer sk-blocked")
	requireHTTPError(t, err, http.StatusForbidden, "Service account is blocked")

	sa, err := a.ServiceAccount(ctx, "Bearer sk-service")
	require.NoError(t, err)
	assert.Equal(t, "billing", sa.Key.ServiceAccountID())

	keys.err = errors.New("litellm down")
	_, err = a.Key(ctx, "Bearer sk-personal")
	requireHTTPError(t, err, http.StatusUnauthorized, "Failed to authorize")
}

func TestAdmin(t *testing.T) {
	a, _, _ := newTestAuthorizer()
	ctx := context.Background()

	_, err := a.Admin(ctx, "Bearer sk-master")
	assert.NoError(t, err)

	_, err = a.Admin(ctx, "Bearer sk-maste")
	requireHTTPError(t, err, http.StatusUnauthorized, "Invalid authorization token")

	noMaster := NewAuthorizer(nil, nil, nil, "")
	_, err = noMaster.Admin(ctx, "Bearer ")
	requireHTTPError(t, err, http.StatusUnauthorized, "Invalid authorization token")
}

func TestOwnedKey(t *testing.T) {
	_, _, keys := newTestAuthorizer()
	ctx := context.Background()

	key, err := OwnedKey(ctx, keys, "user-1", "sk-personal")
	require.NoError(t, err)
	assert.Equal(t, "h1", key.KeyHash)

	_, err = OwnedKey(ctx, keys, "user-2", "sk-personal")
	requireHTTPError(t, err, http.StatusForbidden, "No permission to access the key that is owned by other users")

	key, err = OwnedKey(ctx, keys, "user-2", "nothing")
	require.NoError(t, err)
	assert.Nil(t, key)

	_, err = OwnedKey(ctx, keys, "", "sk-service")
	requireHTTPError(t, err, http.StatusForbidden, "No permission to access the key that is owned by other users")
}

func TestLiteLLMKeysActsAsCaller(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.URL.Query().Get("key")
		_, _ = io.WriteString(w, `{"key":"hash-1","info":{"key_name":"sk-...abcd","user_id":"user-1","spend":0,"metadata":{}}}`)
	}))
	defer srv.Close()

	lookup := LiteLLMKeys{Client: litellm.NewClient(srv.URL, "sk-master", time.Second)}
	key, err := lookup.LookupKey(context.Background(), "sk-caller")
	require.NoError(t, err)
	require.NotNil(t, key)

	assert.Equal(t, "Bearer sk-caller", gotAuth)
	assert.Equal(t, "sk-caller", gotKey)
	assert.Equal(t, "hash-1", key.KeyHash)
	assert.True(t, key.OwnedBy("user-1"))
}
