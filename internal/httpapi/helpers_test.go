package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/think-in-universe/nearai-cloud-server/internal/attestation"
	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/queue"
	"github.com/think-in-universe/nearai-cloud-server/internal/signature"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const (
	masterKey      = "sk-master"
	userKey        = "sk-user-1"
	otherUserKey   = "sk-user-2"
	serviceKey     = "sk-service"
	sessionUser    = "session-1"
	sessionNewUser = "session-3"
)

type fakeIdentity map[string]*models.Identity

func (f fakeIdentity) Verify(_ context.Context, token string) (*models.Identity, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return nil, auth.ErrNoIdentity
}

type fakeModelStore struct {
	mu        sync.Mutex
	ids       map[string]string
	models    []models.Model
	listCalls int
}

func (f *fakeModelStore) GetModelIDByName(_ context.Context, name string) (string, error) {
	if id, ok := f.ids[name]; ok {
		return id, nil
	}
	return "", storage.ErrModelNotFound
}

func (f *fakeModelStore) ListModels(_ context.Context, offset, limit int) ([]models.Model, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	if offset >= len(f.models) {
		return nil, len(f.models), nil
	}
	end := min(offset+limit, len(f.models))
	return f.models[offset:end], len(f.models), nil
}

func (f *fakeModelStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeReporter struct {
	got    attestation.Request
	report *models.MergedAttestation
	err    error
}

func (f *fakeReporter) Report(_ context.Context, req attestation.Request) (*models.MergedAttestation, error) {
	f.got = req
	return f.report, f.err
}

type fakeSignatures struct {
	got signature.Request
	sig *models.Signature
	err error
}

func (f *fakeSignatures) Resolve(_ context.Context, req signature.Request) (*models.Signature, error) {
	f.got = req
	return f.sig, f.err
}

type recordingIndex struct {
	mu      sync.Mutex
	entries map[string]string
}

func (r *recordingIndex) Put(_ context.Context, chatID, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[chatID] = modelID
	return nil
}

func (r *recordingIndex) Lookup(_ context.Context, chatID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.entries[chatID]; ok {
		return id, nil
	}
	return "", storage.ErrChatNotIndexed
}

type nopSignatureWriter struct{}

func (nopSignatureWriter) Create(context.Context, *models.SignatureRecord) error { return nil }

func (nopSignatureWriter) CreateBatch(context.Context, []*models.SignatureRecord) error { return nil }

// testEnv is a server in front of a fake LiteLLM. Tests register extra
// upstream routes on upstream.
type testEnv struct {
	t        *testing.T
	upstream *http.ServeMux
	keys     map[string]map[string]any
	models   *fakeModelStore
	reports  *fakeReporter
	sigs     *fakeSignatures
	index    *recordingIndex
	sigQueue *queue.MemoryQueue[models.SignatureRecord]
	dlq      *queue.MemoryDeadLetterQueue[models.SignatureRecord]
	server   *Server
	handler  http.Handler
}

func keyInfo(userID *string, alias string, metadata map[string]any) map[string]any {
	info := map[string]any{
		"key_name":   "sk-...abcd",
		"spend":      0.25,
		"created_at": "2025-01-01T00:00:00Z",
		"metadata":   metadata,
		"user_id":    nil,
		"key_alias":  nil,
	}
	if userID != nil {
		info["user_id"] = *userID
	}
	if alias != "" {
		info["key_alias"] = alias
	}
	return info
}

func strPtr(s string) *string { return &s }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		t:        t,
		upstream: http.NewServeMux(),
		keys: map[string]map[string]any{
			userKey:      keyInfo(strPtr("user-1"), "user-1:laptop", map[string]any{}),
			otherUserKey: keyInfo(strPtr("user-2"), "", map[string]any{}),
			serviceKey:   keyInfo(nil, "billing", map[string]any{"service_account_id": "billing"}),
		},
		models:  &fakeModelStore{ids: map[string]string{}},
		reports: &fakeReporter{},
		sigs:    &fakeSignatures{},
		index:   &recordingIndex{entries: map[string]string{}},
	}
	queueCfg := queue.DefaultConfig("signatures")
	env.sigQueue = queue.NewMemoryQueue[models.SignatureRecord](queueCfg)
	env.dlq = queue.NewMemoryDeadLetterQueue[models.SignatureRecord]()
	worker := storage.NewSignatureQueueWorker(env.sigQueue, env.dlq, nopSignatureWriter{}, queueCfg)

	env.upstream.HandleFunc("GET /key/info", func(w http.ResponseWriter, r *http.Request) {
		requested := r.URL.Query().Get("key")
		for raw, info := range env.keys {
			hash := utils.HashString(raw)
			if requested == raw || requested == hash {
				writeJSON(w, http.StatusOK, map[string]any{"key": hash, "info": info})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"message": "Key not found", "code": "404"},
		})
	})
	env.upstream.HandleFunc("GET /user/info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "user-1" {
			writeJSON(w, http.StatusOK, map[string]any{"user_info": map[string]any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_info": map[string]any{
			"user_id":    "user-1",
			"user_email": "a@example.com",
			"max_budget": nil,
			"spend":      1.5,
		}})
	})

	upstream := httptest.NewServer(env.upstream)
	t.Cleanup(upstream.Close)

	client := litellm.NewClient(upstream.URL, masterKey, 5*time.Second)
	identity := fakeIdentity{
		sessionUser:    {ID: "user-1", Email: "a@example.com"},
		sessionNewUser: {ID: "user-3", Email: "c@example.com"},
	}
	authorizer := auth.NewAuthorizer(identity, client, auth.LiteLLMKeys{Client: client}, masterKey)

	env.server = NewServer(Dependencies{
		LiteLLM:       client,
		Models:        env.models,
		Attestations:  env.reports,
		Signatures:    env.sigs,
		ChatIndex:     env.index,
		Auth:          middleware.NewAuth(authorizer, false),
		DeadLetters:   worker,
		ModelListTTL:  time.Minute,
		ModelListSize: 16,
	})
	env.handler = env.server.Router()
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[utils.ErrorResponse](t, rec).Error.Message
}
