package litellm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// DefaultProviderName is used when a credential is created without one.
const DefaultProviderName = "OpenAI_Compatible"

type credentialBody struct {
	CredentialName string `json:"credential_name"`
	CredentialInfo struct {
		CustomLLMProvider string `json:"custom_llm_provider,omitempty"`
	} `json:"credential_info"`
	CredentialValues struct {
		APIBase string `json:"api_base,omitempty"`
		APIKey  string `json:"api_key,omitempty"`
	} `json:"credential_values"`
}

func newCredentialBody(c models.Credential) credentialBody {
	var body credentialBody
	body.CredentialName = c.CredentialName
	body.CredentialInfo.CustomLLMProvider = c.ProviderName
	body.CredentialValues.APIBase = c.ProviderAPIURL
	body.CredentialValues.APIKey = c.ProviderAPIKey
	return body
}

func (c *Client) CreateCredential(ctx context.Context, cred models.Credential) error {
	if cred.ProviderName == "" {
		cred.ProviderName = DefaultProviderName
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/credentials", body: newCredentialBody(cred)}, nil)
}

// UpdateCredential patches the named credential. Empty fields are left
// unchanged.
func (c *Client) UpdateCredential(ctx context.Context, cred models.Credential) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/credentials/" + url.PathEscape(cred.CredentialName),
		body:   newCredentialBody(cred),
	}, nil)
}

func (c *Client) ListCredentials(ctx context.Context) ([]models.Credential, error) {
	var resp struct {
		Credentials []credentialBody `json:"credentials"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/credentials"}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Credential, 0, len(resp.Credentials))
	for _, cr := range resp.Credentials {
		out = append(out, models.Credential{
			CredentialName: cr.CredentialName,
			ProviderName:   cr.CredentialInfo.CustomLLMProvider,
			ProviderAPIURL: cr.CredentialValues.APIBase,
			ProviderAPIKey: cr.CredentialValues.APIKey,
		})
	}
	return out, nil
}
