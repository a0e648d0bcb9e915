package httpapi

import (
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

func (s *Server) createCredential(w http.ResponseWriter, r *http.Request) (any, error) {
	var req models.Credential
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("credentialName", req.CredentialName); err != nil {
		return nil, err
	}
	if err := validURL("providerApiUrl", req.ProviderAPIURL); err != nil {
		return nil, err
	}
	if err := required("providerApiKey", req.ProviderAPIKey); err != nil {
		return nil, err
	}

	return nil, s.litellm.CreateCredential(r.Context(), req)
}

// updateCredential changes the fields that are set. Empty fields are kept.
func (s *Server) updateCredential(w http.ResponseWriter, r *http.Request) (any, error) {
	var req models.Credential
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("credentialName", req.CredentialName); err != nil {
		return nil, err
	}
	if req.ProviderAPIURL != "" {
		if err := validURL("providerApiUrl", req.ProviderAPIURL); err != nil {
			return nil, err
		}
	}

	return nil, s.litellm.UpdateCredential(r.Context(), req)
}

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request) (any, error) {
	creds, err := s.litellm.ListCredentials(r.Context())
	if err != nil {
		return nil, err
	}
	if creds == nil {
		creds = []models.Credential{}
	}
	return creds, nil
}
