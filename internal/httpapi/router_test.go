package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

func TestPing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pingMessage, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/nope", "/v2/models", "/key/unknown"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(http.MethodGet, path, userKey, nil)
			require.Equal(t, http.StatusNotFound, rec.Code)

			body := decodeJSON[utils.ErrorResponse](t, rec)
			assert.Equal(t, "Not Found", body.Error.Message)
			assert.Equal(t, "not_found_error", body.Error.Type)
			assert.Empty(t, body.Error.Stack)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthModesPerRoute(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.HandleFunc("GET /credentials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"credentials": []any{}})
	})
	env.upstream.HandleFunc("GET /key/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"keys": []any{}, "total_count": 0, "current_page": 1, "total_pages": 0})
	})

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		status  int
		message string
	}{
		{"key route without token", http.MethodGet, "/v1/models", "", http.StatusUnauthorized, "Missing authorization token"},
		{"key route with session", http.MethodGet, "/v1/models", sessionUser, http.StatusUnauthorized, "Invalid authorization token"},
		{"user route with key", http.MethodGet, "/key/list", userKey, http.StatusUnauthorized, "Invalid authorization token"},
		{"user route unregistered", http.MethodGet, "/key/list", sessionNewUser, http.StatusForbidden, "Incomplete user registration"},
		{"user route registered", http.MethodGet, "/key/list", sessionUser, http.StatusOK, ""},
		{"service account route with personal key", http.MethodGet, "/credential/list", userKey, http.StatusForbidden, "Only service account can access this endpoint"},
		{"service account route", http.MethodGet, "/credential/list", serviceKey, http.StatusOK, ""},
		{"admin route with personal key", http.MethodPost, "/key/service-account/generate", userKey, http.StatusUnauthorized, "Invalid authorization token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, rec))
			}
		})
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Token "+userKey)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization token must start with 'Bearer '", errorMessage(t, rec))
}

func TestUpstreamErrorKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.HandleFunc("GET /credentials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit_error", "code": 429},
		})
	})

	rec := env.do(http.MethodGet, "/credential/list", serviceKey, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeJSON[utils.ErrorResponse](t, rec)
	assert.Equal(t, "slow down", body.Error.Message)
	assert.Equal(t, "rate_limit_error", body.Error.Type)
	require.NotNil(t, body.Error.Code)
	assert.Equal(t, "429", *body.Error.Code)
}

func TestUpstreamServerErrorIsHidden(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.HandleFunc("GET /credentials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "database password is hunter2"},
		})
	})

	rec := env.do(http.MethodGet, "/credential/list", serviceKey, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", errorMessage(t, rec))
}
