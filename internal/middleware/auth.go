package middleware

import (
	"context"
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// Auth provides one middleware per authentication mode. Each stores its
// auth.Auth variant in the request context.
type Auth struct {
	authorizer *auth.Authorizer
	isDev      bool
}

func NewAuth(authorizer *auth.Authorizer, isDev bool) *Auth {
	return &Auth{authorizer: authorizer, isDev: isDev}
}

// Session requires an identity provider session.
func (a *Auth) Session(next http.Handler) http.Handler {
	return authenticate(a, a.authorizer.Session, next)
}

// User requires a session of a registered user.
func (a *Auth) User(next http.Handler) http.Handler {
	return authenticate(a, a.authorizer.User, next)
}

// Key requires a LiteLLM virtual key.
func (a *Auth) Key(next http.Handler) http.Handler {
	return authenticate(a, a.authorizer.Key, next)
}

// ServiceAccount requires a service account key.
func (a *Auth) ServiceAccount(next http.Handler) http.Handler {
	return authenticate(a, a.authorizer.ServiceAccount, next)
}

// Admin requires the master key.
func (a *Auth) Admin(next http.Handler) http.Handler {
	return authenticate(a, a.authorizer.Admin, next)
}

func authenticate[T auth.Auth](a *Auth, authorize func(context.Context, string) (T, error), next http.Handler) http.Handler {
	logger := logging.For("auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := authorize(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			httpErr := utils.RespondWithError(w, err, a.isDev)
			logger.Debug("request rejected",
				"path", r.URL.Path,
				"status", httpErr.Status,
				"error", httpErr.Error(),
				"request_id", GetRequestID(r.Context()),
			)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), principal)))
	})
}
