package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

type modelPage struct {
	Models      []models.Model `json:"models"`
	TotalModels int            `json:"totalModels"`
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	TotalPages  int            `json:"totalPages"`
}

type createModelRequest struct {
	Model              string                `json:"model"`
	ProviderModelName  string                `json:"providerModelName"`
	ProviderName       string                `json:"providerName"`
	CredentialName     string                `json:"credentialName"`
	InputCostPerToken  *float64              `json:"inputCostPerToken"`
	OutputCostPerToken *float64              `json:"outputCostPerToken"`
	Metadata           *models.ModelMetadata `json:"metadata"`
}

func (req *createModelRequest) validate() error {
	if err := validateModelName(req.Model); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{
		{"providerModelName", req.ProviderModelName},
		{"providerName", req.ProviderName},
		{"credentialName", req.CredentialName},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}

	m := req.Metadata
	if m == nil {
		return utils.BadRequest("Missing metadata")
	}
	if m.Verifiable == nil {
		return utils.BadRequest("Missing metadata.verifiable")
	}
	if m.ContextLength == nil {
		return utils.BadRequest("Missing metadata.contextLength")
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"metadata.modelFullName", m.ModelFullName},
		{"metadata.modelDescription", m.ModelDescription},
		{"metadata.modelIcon", m.ModelIcon},
	} {
		if f.value == nil || *f.value == "" {
			return utils.BadRequest(fmt.Sprintf("Missing %s", f.name))
		}
	}
	return nil
}

func (s *Server) createModel(w http.ResponseWriter, r *http.Request) (any, error) {
	var req createModelRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	id, err := s.litellm.CreateModel(r.Context(), litellm.CreateModelParams{
		Model:              req.Model,
		ProviderModelName:  req.ProviderModelName,
		ProviderName:       req.ProviderName,
		CredentialName:     req.CredentialName,
		InputCostPerToken:  req.InputCostPerToken,
		OutputCostPerToken: req.OutputCostPerToken,
		Metadata:           *req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	s.modelList.Clear()

	return map[string]string{"modelId": id}, nil
}

type updateModelRequest struct {
	ModelID            string                `json:"modelId"`
	Model              string                `json:"model"`
	ProviderModelName  string                `json:"providerModelName"`
	ProviderName       string                `json:"providerName"`
	CredentialName     string                `json:"credentialName"`
	InputCostPerToken  *float64              `json:"inputCostPerToken"`
	OutputCostPerToken *float64              `json:"outputCostPerToken"`
	Metadata           *models.ModelMetadata `json:"metadata"`
}

func (s *Server) updateModel(w http.ResponseWriter, r *http.Request) (any, error) {
	var req updateModelRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("modelId", req.ModelID); err != nil {
		return nil, err
	}
	if req.Model != "" {
		if err := validateModelName(req.Model); err != nil {
			return nil, err
		}
	}

	err := s.litellm.UpdateModel(r.Context(), litellm.UpdateModelParams{
		ModelID:            req.ModelID,
		Model:              req.Model,
		ProviderModelName:  req.ProviderModelName,
		ProviderName:       req.ProviderName,
		CredentialName:     req.CredentialName,
		InputCostPerToken:  req.InputCostPerToken,
		OutputCostPerToken: req.OutputCostPerToken,
		Metadata:           req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	s.modelList.Clear()
	return nil, nil
}

type deleteModelRequest struct {
	ModelID string `json:"modelId"`
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) (any, error) {
	var req deleteModelRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("modelId", req.ModelID); err != nil {
		return nil, err
	}

	if err := s.litellm.DeleteModel(r.Context(), req.ModelID); err != nil {
		return nil, err
	}
	s.modelList.Clear()
	return nil, nil
}

// getModel looks a registration up by id, or by public name through the
// database. Unknown models are null.
func (s *Server) getModel(w http.ResponseWriter, r *http.Request) (any, error) {
	q := r.URL.Query()
	modelID, modelName := q.Get("modelId"), q.Get("modelName")
	if modelID == "" && modelName == "" {
		return nil, utils.BadRequest("Missing modelId or modelName")
	}

	if modelID == "" {
		id, err := s.models.GetModelIDByName(r.Context(), modelName)
		if errors.Is(err, storage.ErrModelNotFound) {
			return jsonNull, nil
		}
		if err != nil {
			return nil, utils.Internal("Failed to get model", err)
		}
		modelID = id
	}

	model, err := s.litellm.GetModel(r.Context(), modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return jsonNull, nil
	}
	return model, nil
}

// listModels pages over distinct public model names. Pages are cached
// until the registry is changed through this server or the TTL passes.
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) (any, error) {
	p, err := parsePagination(r.URL.Query())
	if err != nil {
		return nil, err
	}
	if p.Page == 0 {
		p.Page = defaultModelsPage
	}
	if p.PageSize == 0 {
		p.PageSize = defaultModelsLimit
	}

	cacheKey := fmt.Sprintf("%d:%d", p.Page, p.PageSize)
	if page, ok := s.modelList.Get(cacheKey); ok {
		s.metrics.RecordCacheLookup("model_list", true)
		return page, nil
	}
	s.metrics.RecordCacheLookup("model_list", false)

	list, total, err := s.models.ListModels(r.Context(), (p.Page-1)*p.PageSize, p.PageSize)
	if err != nil {
		return nil, utils.Internal("Failed to list models", err)
	}
	if list == nil {
		list = []models.Model{}
	}

	page := &modelPage{
		Models:      list,
		TotalModels: total,
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  (total + p.PageSize - 1) / p.PageSize,
	}
	s.modelList.Set(cacheKey, page)
	return page, nil
}
