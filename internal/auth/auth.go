// Package auth authenticates bearer tokens and carries the result through
// the request context as one of a closed set of Auth variants.
package auth

import (
	"context"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// Auth is the authenticated principal of a request. The variants are
// SessionAuth, UserAuth, KeyAuth, ServiceAccountAuth and AdminAuth.
type Auth interface {
	isAuth()
}

// SessionAuth is a caller holding a valid identity provider session.
type SessionAuth struct {
	Identity models.Identity
}

// UserAuth is a session whose identity is registered in LiteLLM.
type UserAuth struct {
	Identity models.Identity
	User     models.User
}

// KeyAuth is a caller holding a LiteLLM virtual key. Token is the raw key,
// used to act upstream on the caller's behalf.
type KeyAuth struct {
	Key   models.Key
	Token string
}

// ServiceAccountAuth is a KeyAuth whose key belongs to an unblocked service
// account.
type ServiceAccountAuth struct {
	Key   models.Key
	Token string
}

// AdminAuth is a caller holding the LiteLLM master key.
type AdminAuth struct{}

func (SessionAuth) isAuth()        {}
func (UserAuth) isAuth()           {}
func (KeyAuth) isAuth()            {}
func (ServiceAccountAuth) isAuth() {}
func (AdminAuth) isAuth()          {}

type contextKey struct{}

// WithAuth returns a copy of ctx carrying a.
func WithAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// From returns the Auth stored in ctx when it is the variant T.
func From[T Auth](ctx context.Context) (T, bool) {
	a, ok := ctx.Value(contextKey{}).(T)
	return a, ok
}

// FromContext returns whatever Auth is stored in ctx.
func FromContext(ctx context.Context) (Auth, bool) {
	a, ok := ctx.Value(contextKey{}).(Auth)
	return a, ok
}

// UserID returns the id of the human behind a, if any.
func UserID(a Auth) string {
	switch v := a.(type) {
	case SessionAuth:
		return v.Identity.ID
	case UserAuth:
		return v.User.UserID
	case KeyAuth:
		if v.Key.UserID != nil {
			return *v.Key.UserID
		}
	}
	return ""
}
