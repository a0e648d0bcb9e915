package models

// Credential is a named provider endpoint registered in LiteLLM.
type Credential struct {
	CredentialName string `json:"credentialName"`
	ProviderName   string `json:"providerName"`
	ProviderAPIURL string `json:"providerApiUrl"`
	ProviderAPIKey string `json:"providerApiKey"`
}
