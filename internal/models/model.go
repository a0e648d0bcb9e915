package models

import "regexp"

// ModelNamePattern restricts public model names.
var ModelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-./]+$`)

// ModelMetadata is stored by LiteLLM under model_info.nearai_metadata.
type ModelMetadata struct {
	Verifiable       *bool   `json:"verifiable"`
	ContextLength    *int64  `json:"contextLength"`
	ModelFullName    *string `json:"modelFullName"`
	ModelDescription *string `json:"modelDescription"`
	ModelIcon        *string `json:"modelIcon"`
}

// Model is a registration in the LiteLLM model registry. Model is the
// public name; several registrations may share it.
type Model struct {
	ModelID            string        `json:"modelId"`
	Model              string        `json:"model"`
	ProviderModelName  string        `json:"providerModelName"`
	ProviderName       string        `json:"providerName"`
	CredentialName     string        `json:"credentialName"`
	InputCostPerToken  float64       `json:"inputCostPerToken"`
	OutputCostPerToken float64       `json:"outputCostPerToken"`
	Metadata           ModelMetadata `json:"metadata"`
}

// InternalModelParams is one backend replica of a public model with its
// decrypted endpoint and credentials. Never serialized to clients.
type InternalModelParams struct {
	ModelID string
	Model   string
	APIURL  string
	APIKey  string
}
