package httpapi

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t)
	var got map[string]any
	env.upstream.HandleFunc("POST /user/new", func(w http.ResponseWriter, r *http.Request) {
		got = readBody(t, r)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	rec := env.do(http.MethodPost, "/user/register", sessionNewUser, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "user-3", got["user_id"])
	assert.Equal(t, "c@example.com", got["user_email"])
	assert.Equal(t, float64(0), got["max_budget"])
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/user/info", sessionUser, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"userId":"user-1","userEmail":"a@example.com","maxBudget":null,"spend":1.5}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/user/info", sessionNewUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}

func TestManageUser(t *testing.T) {
	env := newTestEnv(t)
	var got map[string]any
	env.upstream.HandleFunc("POST /user/update", func(w http.ResponseWriter, r *http.Request) {
		got = readBody(t, r)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	rec := env.do(http.MethodPost, "/user/manage", serviceKey, map[string]any{"userId": "user-1", "maxBudget": 10})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", got["user_id"])
	assert.Equal(t, float64(10), got["max_budget"])

	rec = env.do(http.MethodPost, "/user/manage", serviceKey, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing userId", errorMessage(t, rec))
}

func TestMissingBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/user/manage", serviceKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing request body", errorMessage(t, rec))
}

func validModelBody() map[string]any {
	return map[string]any{
		"model":             "llama-3",
		"providerModelName": "meta/llama-3",
		"providerName":      "openai",
		"credentialName":    "gpu-1",
		"metadata": map[string]any{
			"verifiable":       true,
			"contextLength":    8192,
			"modelFullName":    "Llama 3",
			"modelDescription": "An open model",
			"modelIcon":        "https://example.com/icon.png",
		},
	}
}

func TestCreateModel(t *testing.T) {
	env := newTestEnv(t)
	var got map[string]any
	env.upstream.HandleFunc("POST /model/new", func(w http.ResponseWriter, r *http.Request) {
		got = readBody(t, r)
		writeJSON(w, http.StatusOK, map[string]any{"model_id": "m-9"})
	})

	rec := env.do(http.MethodPost, "/model/new", serviceKey, validModelBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"modelId":"m-9"}`, rec.Body.String())

	assert.Equal(t, "llama-3", got["model_name"])
	params := got["litellm_params"].(map[string]any)
	assert.Equal(t, "meta/llama-3", params["model"])
	assert.Equal(t, "gpu-1", params["litellm_credential_name"])
	metadata := got["model_info"].(map[string]any)["nearai_metadata"].(map[string]any)
	assert.Equal(t, float64(8192), metadata["context_length"])
}

func TestCreateModelValidation(t *testing.T) {
	env := newTestEnv(t)

	body := validModelBody()
	body["model"] = "bad name!"
	rec := env.do(http.MethodPost, "/model/new", serviceKey, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid model name", errorMessage(t, rec))

	body = validModelBody()
	delete(body, "metadata")
	rec = env.do(http.MethodPost, "/model/new", serviceKey, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing metadata", errorMessage(t, rec))

	// With several fields missing the first in field order is reported.
	body = validModelBody()
	body["providerName"] = ""
	body["credentialName"] = ""
	for i := 0; i < 5; i++ {
		rec = env.do(http.MethodPost, "/model/new", serviceKey, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing providerName", errorMessage(t, rec))
	}

	body = validModelBody()
	metadata := body["metadata"].(map[string]any)
	delete(metadata, "modelIcon")
	delete(metadata, "modelFullName")
	rec = env.do(http.MethodPost, "/model/new", serviceKey, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing metadata.modelFullName", errorMessage(t, rec))

	rec = env.do(http.MethodPost, "/model/new", userKey, validModelBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetModel(t *testing.T) {
	env := newTestEnv(t)
	env.models.ids["llama-3"] = "m-1"
	env.upstream.HandleFunc("GET /model/info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("litellm_model_id") != "m-1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "not found"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{map[string]any{
			"model_name":     "llama-3",
			"litellm_params": map[string]any{"model": "meta/llama-3", "custom_llm_provider": "openai"},
			"model_info":     map[string]any{"id": "m-1"},
		}}})
	})

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"by id", "?modelId=m-1", http.StatusOK, ""},
		{"by name", "?modelName=llama-3", http.StatusOK, ""},
		{"unknown name", "?modelName=nope", http.StatusOK, "null"},
		{"unknown id", "?modelId=m-404", http.StatusOK, "null"},
		{"no selector", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/model/details"+tt.query, sessionUser, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			switch {
			case tt.body != "":
				assert.JSONEq(t, tt.body, rec.Body.String())
			case tt.status == http.StatusOK:
				got := decodeJSON[models.Model](t, rec)
				assert.Equal(t, "m-1", got.ModelID)
				assert.Equal(t, "llama-3", got.Model)
			default:
				assert.Equal(t, "Missing modelId or modelName", errorMessage(t, rec))
			}
		})
	}
}

func TestListModelsIsCached(t *testing.T) {
	env := newTestEnv(t)
	env.models.models = []models.Model{
		{ModelID: "m-1", Model: "a"},
		{ModelID: "m-2", Model: "b"},
		{ModelID: "m-3", Model: "c"},
	}
	var deletes atomic.Int32
	env.upstream.HandleFunc("POST /model/delete", func(w http.ResponseWriter, r *http.Request) {
		deletes.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	rec := env.do(http.MethodGet, "/model/list?page=2&pageSize=2", sessionUser, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodeJSON[modelPage](t, rec)
	assert.Equal(t, 3, page.TotalModels)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Models, 1)
	assert.Equal(t, "c", page.Models[0].Model)

	rec = env.do(http.MethodGet, "/model/list?page=2&pageSize=2", sessionUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.models.calls())

	rec = env.do(http.MethodPost, "/model/delete", serviceKey, map[string]any{"modelId": "m-3"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), deletes.Load())

	rec = env.do(http.MethodGet, "/model/list?page=2&pageSize=2", sessionUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.models.calls())
}

func TestListModelsDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/model/list", sessionUser, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"models":[],"totalModels":0,"page":1,"pageSize":100,"totalPages":0}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/model/list?pageSize=101", sessionUser, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pageSize must be at most 100", errorMessage(t, rec))
}

func TestCredentials(t *testing.T) {
	env := newTestEnv(t)
	var created map[string]any
	env.upstream.HandleFunc("POST /credentials", func(w http.ResponseWriter, r *http.Request) {
		created = readBody(t, r)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	rec := env.do(http.MethodPost, "/credential/new", serviceKey, map[string]any{
		"credentialName": "gpu-1",
		"providerName":   "openai",
		"providerApiUrl": "https://gpu-1.example.com/v1",
		"providerApiKey": "secret",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "gpu-1", created["credential_name"])

	rec = env.do(http.MethodPost, "/credential/new", serviceKey, map[string]any{
		"credentialName": "gpu-2",
		"providerApiUrl": "not a url",
		"providerApiKey": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "providerApiUrl must be a URL", errorMessage(t, rec))

	rec = env.do(http.MethodPost, "/credential/update", serviceKey, map[string]any{"providerApiKey": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing credentialName", errorMessage(t, rec))
}

func TestDailyActivity(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.HandleFunc("GET /user/daily/activity", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Empty(t, q.Get("tags"))
		assert.Equal(t, "2025-01-01", q.Get("start_date"))
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
	})
	env.upstream.HandleFunc("GET /tag/daily/activity", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b", r.URL.Query().Get("tags"))
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
	})

	rec := env.do(http.MethodGet, "/stats/user/daily/activity?startDate=2025-01-01&endDate=2025-01-31&tags=a", serviceKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/stats/tag/daily/activity?startDate=2025-01-01&endDate=2025-01-31&tags=a,b", serviceKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/stats/user/daily/activity?endDate=2025-01-31", serviceKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing startDate", errorMessage(t, rec))
}
