package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// proxyModelRow is a row of LiteLLM's model registry.
type proxyModelRow struct {
	ModelID       string       `db:"model_id"`
	ModelName     string       `db:"model_name"`
	LiteLLMParams models.JSONB `db:"litellm_params"`
	ModelInfo     models.JSONB `db:"model_info"`
}

// litellmParams mirrors litellm_params. String fields are encrypted at rest.
type litellmParams struct {
	Model              string  `json:"model"`
	APIBase            string  `json:"api_base"`
	APIKey             string  `json:"api_key"`
	CredentialName     string  `json:"litellm_credential_name"`
	CustomLLMProvider  string  `json:"custom_llm_provider"`
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

type modelInfo struct {
	ID             string `json:"id"`
	NearAIMetadata *struct {
		Verifiable       *bool   `json:"verifiable"`
		ContextLength    *int64  `json:"context_length"`
		ModelIcon        *string `json:"model_icon"`
		ModelFullName    *string `json:"model_full_name"`
		ModelDescription *string `json:"model_description"`
	} `json:"nearai_metadata"`
}

type credentialValues struct {
	APIBase string `json:"api_base"`
	APIKey  string `json:"api_key"`
}

// ModelRepository reads LiteLLM's model registry and resolves backend
// credentials for each replica.
type ModelRepository struct {
	db  *DB
	enc *Encryption
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB, enc *Encryption) *ModelRepository {
	return &ModelRepository{db: db, enc: enc}
}

// ListInternalModelParams returns every replica registered under modelName,
// oldest first. A name with no registrations yields ErrModelNotFound.
func (r *ModelRepository) ListInternalModelParams(ctx context.Context, modelName string) ([]models.InternalModelParams, error) {
	query := r.db.rebind(`
		SELECT model_id, model_name, litellm_params
		FROM "LiteLLM_ProxyModelTable"
		WHERE model_name = ?
		ORDER BY created_at ASC, model_id ASC
	`)

	var rows []proxyModelRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, modelName); err != nil {
		return nil, fmt.Errorf("failed to list proxy models: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrModelNotFound
	}

	out := make([]models.InternalModelParams, 0, len(rows))
	for _, row := range rows {
		params, err := r.resolve(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", row.ModelID, err)
		}
		out = append(out, params)
	}
	return out, nil
}

// resolve decrypts a row's params. A direct api_base and api_key pair wins
// over a credential name.
func (r *ModelRepository) resolve(ctx context.Context, row proxyModelRow) (models.InternalModelParams, error) {
	var p litellmParams
	if err := row.LiteLLMParams.Decode(&p); err != nil {
		return models.InternalModelParams{}, fmt.Errorf("failed to parse litellm_params: %w", err)
	}

	model, err := r.enc.Decrypt(p.Model)
	if err != nil {
		return models.InternalModelParams{}, fmt.Errorf("failed to decrypt model: %w", err)
	}

	params := models.InternalModelParams{ModelID: row.ModelID, Model: model}

	switch {
	case p.APIBase != "" && p.APIKey != "":
		if params.APIURL, err = r.enc.Decrypt(p.APIBase); err != nil {
			return params, fmt.Errorf("failed to decrypt api_base: %w", err)
		}
		if params.APIKey, err = r.enc.Decrypt(p.APIKey); err != nil {
			return params, fmt.Errorf("failed to decrypt api_key: %w", err)
		}
		return params, nil

	case p.CredentialName != "":
		name, err := r.enc.Decrypt(p.CredentialName)
		if err != nil {
			return params, fmt.Errorf("failed to decrypt credential name: %w", err)
		}
		values, err := r.getCredentialValues(ctx, name)
		if err != nil {
			return params, err
		}
		params.APIURL, params.APIKey = values.APIBase, values.APIKey
		return params, nil

	default:
		return params, ErrBadModelParams
	}
}

func (r *ModelRepository) getCredentialValues(ctx context.Context, name string) (*credentialValues, error) {
	query := r.db.rebind(`
		SELECT credential_values
		FROM "LiteLLM_CredentialsTable"
		WHERE credential_name = ?
	`)

	var raw models.JSONB
	if err := r.db.conn.GetContext(ctx, &raw, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var stored credentialValues
	if err := raw.Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to parse credential_values: %w", err)
	}
	if stored.APIBase == "" || stored.APIKey == "" {
		return nil, fmt.Errorf("credential %s: %w", name, ErrBadModelParams)
	}

	apiBase, err := r.enc.Decrypt(stored.APIBase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential api_base: %w", err)
	}
	apiKey, err := r.enc.Decrypt(stored.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential api_key: %w", err)
	}

	return &credentialValues{APIBase: apiBase, APIKey: apiKey}, nil
}

// GetModelIDByName returns the id of the first registration of modelName.
func (r *ModelRepository) GetModelIDByName(ctx context.Context, modelName string) (string, error) {
	query := r.db.rebind(`
		SELECT model_id
		FROM "LiteLLM_ProxyModelTable"
		WHERE model_name = ?
		ORDER BY created_at ASC, model_id ASC
		LIMIT 1
	`)

	var id string
	if err := r.db.conn.GetContext(ctx, &id, query, modelName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrModelNotFound
		}
		return "", fmt.Errorf("failed to get model id: %w", err)
	}
	return id, nil
}

// ListModels pages over distinct public model names, newest registration
// first, and returns the total number of distinct names.
func (r *ModelRepository) ListModels(ctx context.Context, offset, limit int) ([]models.Model, int, error) {
	query := `
		SELECT model_id, model_name, litellm_params, model_info
		FROM "LiteLLM_ProxyModelTable"
		ORDER BY created_at DESC, model_id ASC
	`

	var rows []proxyModelRow
	if err := r.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list proxy models: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	distinct := make([]proxyModelRow, 0, len(rows))
	for _, row := range rows {
		if seen[row.ModelName] {
			continue
		}
		seen[row.ModelName] = true
		distinct = append(distinct, row)
	}

	total := len(distinct)
	if offset >= total {
		return []models.Model{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]models.Model, 0, end-offset)
	for _, row := range distinct[offset:end] {
		m, err := r.toModel(row)
		if err != nil {
			return nil, 0, fmt.Errorf("model %s: %w", row.ModelID, err)
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (r *ModelRepository) toModel(row proxyModelRow) (models.Model, error) {
	var p litellmParams
	if err := row.LiteLLMParams.Decode(&p); err != nil {
		return models.Model{}, fmt.Errorf("failed to parse litellm_params: %w", err)
	}
	var info modelInfo
	if err := row.ModelInfo.Decode(&info); err != nil {
		return models.Model{}, fmt.Errorf("failed to parse model_info: %w", err)
	}

	m := models.Model{
		ModelID:            row.ModelID,
		Model:              row.ModelName,
		InputCostPerToken:  p.InputCostPerToken,
		OutputCostPerToken: p.OutputCostPerToken,
	}
	if info.ID != "" {
		m.ModelID = info.ID
	}

	var err error
	if m.ProviderModelName, err = r.enc.Decrypt(p.Model); err != nil {
		return m, fmt.Errorf("failed to decrypt model: %w", err)
	}
	if m.ProviderName, err = r.enc.Decrypt(p.CustomLLMProvider); err != nil {
		return m, fmt.Errorf("failed to decrypt provider: %w", err)
	}
	if m.CredentialName, err = r.enc.Decrypt(p.CredentialName); err != nil {
		return m, fmt.Errorf("failed to decrypt credential name: %w", err)
	}

	if md := info.NearAIMetadata; md != nil {
		m.Metadata = models.ModelMetadata{
			Verifiable:       md.Verifiable,
			ContextLength:    md.ContextLength,
			ModelFullName:    md.ModelFullName,
			ModelDescription: md.ModelDescription,
			ModelIcon:        md.ModelIcon,
		}
	}
	return m, nil
}
