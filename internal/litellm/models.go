package litellm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

type nearaiMetadata struct {
	Verifiable       *bool   `json:"verifiable,omitempty"`
	ContextLength    *int64  `json:"context_length,omitempty"`
	ModelFullName    *string `json:"model_full_name,omitempty"`
	ModelDescription *string `json:"model_description,omitempty"`
	ModelIcon        *string `json:"model_icon,omitempty"`
}

func toNearaiMetadata(m models.ModelMetadata) *nearaiMetadata {
	return &nearaiMetadata{
		Verifiable:       m.Verifiable,
		ContextLength:    m.ContextLength,
		ModelFullName:    m.ModelFullName,
		ModelDescription: m.ModelDescription,
		ModelIcon:        m.ModelIcon,
	}
}

type modelParams struct {
	Model              string   `json:"model,omitempty"`
	CustomLLMProvider  string   `json:"custom_llm_provider,omitempty"`
	CredentialName     string   `json:"litellm_credential_name,omitempty"`
	InputCostPerToken  *float64 `json:"input_cost_per_token,omitempty"`
	OutputCostPerToken *float64 `json:"output_cost_per_token,omitempty"`
}

type modelBody struct {
	ModelName     string      `json:"model_name,omitempty"`
	LiteLLMParams modelParams `json:"litellm_params"`
	ModelInfo     struct {
		NearaiMetadata *nearaiMetadata `json:"nearai_metadata,omitempty"`
	} `json:"model_info"`
}

// CreateModelParams registers one replica under a public model name.
type CreateModelParams struct {
	Model              string
	ProviderModelName  string
	ProviderName       string
	CredentialName     string
	InputCostPerToken  *float64
	OutputCostPerToken *float64
	Metadata           models.ModelMetadata
}

// CreateModel registers a model and returns its id.
func (c *Client) CreateModel(ctx context.Context, p CreateModelParams) (string, error) {
	body := modelBody{
		ModelName: p.Model,
		LiteLLMParams: modelParams{
			Model:              p.ProviderModelName,
			CustomLLMProvider:  p.ProviderName,
			CredentialName:     p.CredentialName,
			InputCostPerToken:  p.InputCostPerToken,
			OutputCostPerToken: p.OutputCostPerToken,
		},
	}
	body.ModelInfo.NearaiMetadata = toNearaiMetadata(p.Metadata)

	var resp struct {
		ModelID string `json:"model_id"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/model/new", body: body}, &resp); err != nil {
		return "", err
	}
	return resp.ModelID, nil
}

// UpdateModelParams patches a registration. Empty fields are left unchanged;
// Metadata fields are merged into the stored metadata.
type UpdateModelParams struct {
	ModelID            string
	Model              string
	ProviderModelName  string
	ProviderName       string
	CredentialName     string
	InputCostPerToken  *float64
	OutputCostPerToken *float64
	Metadata           *models.ModelMetadata
}

func (c *Client) UpdateModel(ctx context.Context, p UpdateModelParams) error {
	body := modelBody{
		ModelName: p.Model,
		LiteLLMParams: modelParams{
			Model:              p.ProviderModelName,
			CustomLLMProvider:  p.ProviderName,
			CredentialName:     p.CredentialName,
			InputCostPerToken:  p.InputCostPerToken,
			OutputCostPerToken: p.OutputCostPerToken,
		},
	}

	if p.Metadata != nil {
		existing, err := c.GetModel(ctx, p.ModelID)
		if err != nil {
			return err
		}
		if existing == nil {
			return &APIError{Status: http.StatusBadRequest, Message: "Model not found"}
		}
		merged := mergeMetadata(existing.Metadata, *p.Metadata)
		body.ModelInfo.NearaiMetadata = toNearaiMetadata(merged)
	}

	return c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/model/" + url.PathEscape(p.ModelID) + "/update",
		body:   body,
	}, nil)
}

func mergeMetadata(base, patch models.ModelMetadata) models.ModelMetadata {
	if patch.Verifiable != nil {
		base.Verifiable = patch.Verifiable
	}
	if patch.ContextLength != nil {
		base.ContextLength = patch.ContextLength
	}
	if patch.ModelFullName != nil {
		base.ModelFullName = patch.ModelFullName
	}
	if patch.ModelDescription != nil {
		base.ModelDescription = patch.ModelDescription
	}
	if patch.ModelIcon != nil {
		base.ModelIcon = patch.ModelIcon
	}
	return base
}

func (c *Client) DeleteModel(ctx context.Context, modelID string) error {
	body := struct {
		ID string `json:"id"`
	}{modelID}
	return c.do(ctx, request{method: http.MethodPost, path: "/model/delete", body: body}, nil)
}

type modelInfoEntry struct {
	ModelName     string `json:"model_name"`
	LiteLLMParams struct {
		Model              string  `json:"model"`
		CustomLLMProvider  string  `json:"custom_llm_provider"`
		CredentialName     string  `json:"litellm_credential_name"`
		InputCostPerToken  float64 `json:"input_cost_per_token"`
		OutputCostPerToken float64 `json:"output_cost_per_token"`
	} `json:"litellm_params"`
	ModelInfo struct {
		ID             string          `json:"id"`
		NearaiMetadata *nearaiMetadata `json:"nearai_metadata"`
	} `json:"model_info"`
}

func (e modelInfoEntry) toModel() models.Model {
	m := models.Model{
		ModelID:            e.ModelInfo.ID,
		Model:              e.ModelName,
		ProviderModelName:  e.LiteLLMParams.Model,
		ProviderName:       e.LiteLLMParams.CustomLLMProvider,
		CredentialName:     e.LiteLLMParams.CredentialName,
		InputCostPerToken:  e.LiteLLMParams.InputCostPerToken,
		OutputCostPerToken: e.LiteLLMParams.OutputCostPerToken,
	}
	if md := e.ModelInfo.NearaiMetadata; md != nil {
		m.Metadata = models.ModelMetadata{
			Verifiable:       md.Verifiable,
			ContextLength:    md.ContextLength,
			ModelFullName:    md.ModelFullName,
			ModelDescription: md.ModelDescription,
			ModelIcon:        md.ModelIcon,
		}
	}
	return m
}

// ListModelInfo returns registrations, all of them or just modelID. An
// unknown id yields an empty list; LiteLLM answers those with a 400.
func (c *Client) ListModelInfo(ctx context.Context, modelID string) ([]models.Model, error) {
	q := url.Values{}
	setString(q, "litellm_model_id", modelID)

	var resp struct {
		Data []modelInfoEntry `json:"data"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/model/info", query: q}, &resp)
	if IsBadRequest(err) {
		return []models.Model{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Model, 0, len(resp.Data))
	for _, e := range resp.Data {
		out = append(out, e.toModel())
	}
	return out, nil
}

// GetModel returns the registration with modelID, or nil.
func (c *Client) GetModel(ctx context.Context, modelID string) (*models.Model, error) {
	list, err := c.ListModelInfo(ctx, modelID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// Models returns the OpenAI-compatible model list visible to the client's key.
func (c *Client) Models(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/models"}, &out)
	return out, err
}
