package storage

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSigningKey = "sk-test-master-key"

// LiteLLM's tables, reduced to the columns the gateway reads.
const liteLLMSchema = `
CREATE TABLE "LiteLLM_ProxyModelTable" (
	model_id TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	litellm_params TEXT NOT NULL,
	model_info TEXT,
	created_at TEXT NOT NULL
);
CREATE TABLE "LiteLLM_CredentialsTable" (
	credential_name TEXT PRIMARY KEY,
	credential_values TEXT NOT NULL
);
CREATE TABLE "LiteLLM_Config" (
	param_name TEXT PRIMARY KEY,
	param_value TEXT
);
CREATE TABLE "nearAi_MessageSignatures" (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_id TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	model TEXT NOT NULL,
	text TEXT NOT NULL,
	signature TEXT NOT NULL,
	signing_address TEXT NOT NULL,
	signing_algo TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (model_id, chat_id, signing_algo)
);
`

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	conn, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A second connection would open a separate in-memory database.
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(liteLLMSchema)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })
	return NewDBFromConn(conn)
}

func testEncryption(t *testing.T) *Encryption {
	t.Helper()
	enc, err := NewEncryption(testSigningKey)
	require.NoError(t, err)
	return enc
}

func mustEncrypt(t *testing.T, enc *Encryption, s string) string {
	t.Helper()
	out, err := enc.Encrypt(s)
	require.NoError(t, err)
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

type testReplica struct {
	id         string
	name       string
	model      string
	apiBase    string
	apiKey     string
	credential string
	createdAt  string
	metadata   map[string]any
}

func insertModel(t *testing.T, db *DB, enc *Encryption, r testReplica) {
	t.Helper()

	params := map[string]any{
		"model":                 mustEncrypt(t, enc, r.model),
		"custom_llm_provider":   mustEncrypt(t, enc, "openai"),
		"input_cost_per_token":  0.000001,
		"output_cost_per_token": 0.000002,
	}
	if r.apiBase != "" {
		params["api_base"] = mustEncrypt(t, enc, r.apiBase)
	}
	if r.apiKey != "" {
		params["api_key"] = mustEncrypt(t, enc, r.apiKey)
	}
	if r.credential != "" {
		params["litellm_credential_name"] = mustEncrypt(t, enc, r.credential)
	}

	info := map[string]any{"id": r.id}
	if r.metadata != nil {
		info["nearai_metadata"] = r.metadata
	}

	createdAt := r.createdAt
	if createdAt == "" {
		createdAt = "2025-01-01T00:00:00Z"
	}

	_, err := db.conn.Exec(
		`INSERT INTO "LiteLLM_ProxyModelTable" (model_id, model_name, litellm_params, model_info, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.id, r.name, mustJSON(t, params), mustJSON(t, info), createdAt,
	)
	require.NoError(t, err)
}

func insertCredential(t *testing.T, db *DB, enc *Encryption, name, apiBase, apiKey string) {
	t.Helper()

	values := map[string]string{
		"api_base": mustEncrypt(t, enc, apiBase),
		"api_key":  mustEncrypt(t, enc, apiKey),
	}
	_, err := db.conn.Exec(
		`INSERT INTO "LiteLLM_CredentialsTable" (credential_name, credential_values) VALUES (?, ?)`,
		name, mustJSON(t, values),
	)
	require.NoError(t, err)
}

func insertRouterSettings(t *testing.T, db *DB, settings string) {
	t.Helper()
	_, err := db.conn.Exec(
		`INSERT INTO "LiteLLM_Config" (param_name, param_value) VALUES ('router_settings', ?)`,
		settings,
	)
	require.NoError(t, err)
}

func replicaTime(i int) string {
	return fmt.Sprintf("2025-01-01T00:00:%02dZ", i)
}
