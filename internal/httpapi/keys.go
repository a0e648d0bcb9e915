package httpapi

import (
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// Keys created by users may call every model of their team.
var defaultKeyModels = []string{"all-team-models"}

func userAuth(r *http.Request) (auth.UserAuth, error) {
	ua, ok := auth.From[auth.UserAuth](r.Context())
	if !ok {
		return auth.UserAuth{}, utils.Unauthorized("Missing authorization token", nil)
	}
	return ua, nil
}

// keyView is a key as returned to its owner: the alias without the owner
// namespace, and keyOrKeyHash kept for older clients.
type keyView struct {
	KeyOrKeyHash string `json:"keyOrKeyHash"`
	models.Key
}

func newKeyView(k models.Key) keyView {
	if k.UserID != nil && k.KeyAlias != nil {
		short := utils.ShortKeyAlias(*k.UserID, *k.KeyAlias)
		k.KeyAlias = &short
	}
	return keyView{KeyOrKeyHash: k.KeyHash, Key: k}
}

// keyHashParam picks the canonical key hash out of a keyHash value or the
// deprecated keyOrKeyHash value, which may also be a raw key.
func (s *Server) keyHashParam(r *http.Request, keyHash, keyOrKeyHash string) (string, error) {
	if keyHash != "" {
		if !utils.IsKeyHash(keyHash) {
			return "", utils.BadRequest("keyHash must be a sha256 hex digest")
		}
		return keyHash, nil
	}
	if keyOrKeyHash != "" {
		s.logger.Warn("deprecated keyOrKeyHash parameter used",
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		return utils.KeyHash(keyOrKeyHash), nil
	}
	return "", utils.BadRequest("Missing keyHash")
}

type generateKeyRequest struct {
	KeyAlias  *string  `json:"keyAlias"`
	MaxBudget *float64 `json:"maxBudget"`
}

func (s *Server) generateKey(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	var req generateKeyRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := validateKeyAlias(req.KeyAlias); err != nil {
		return nil, err
	}

	params := litellm.GenerateKeyParams{
		UserID:    ua.User.UserID,
		Models:    defaultKeyModels,
		MaxBudget: req.MaxBudget,
	}
	if req.KeyAlias != nil && *req.KeyAlias != "" {
		params.KeyAlias = utils.FullKeyAlias(ua.User.UserID, *req.KeyAlias)
	}

	return s.litellm.GenerateKey(r.Context(), params)
}

type generateServiceAccountRequest struct {
	ServiceAccountID string `json:"serviceAccountId"`
}

func (s *Server) generateServiceAccountKey(w http.ResponseWriter, r *http.Request) (any, error) {
	var req generateServiceAccountRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("serviceAccountId", req.ServiceAccountID); err != nil {
		return nil, err
	}

	return s.litellm.GenerateServiceAccountKey(r.Context(), req.ServiceAccountID, litellm.GenerateKeyParams{
		KeyAlias: req.ServiceAccountID,
		KeyType:  "management",
		Models:   defaultKeyModels,
	})
}

type updateKeyRequest struct {
	KeyHash      string   `json:"keyHash"`
	KeyOrKeyHash string   `json:"keyOrKeyHash"` // Deprecated: use KeyHash.
	KeyAlias     *string  `json:"keyAlias"`
	MaxBudget    *float64 `json:"maxBudget"`
	Blocked      *bool    `json:"blocked"`
}

func (s *Server) updateKey(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	var req updateKeyRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	hash, err := s.keyHashParam(r, req.KeyHash, req.KeyOrKeyHash)
	if err != nil {
		return nil, err
	}
	if err := validateKeyAlias(req.KeyAlias); err != nil {
		return nil, err
	}

	key, err := auth.OwnedKey(r.Context(), s.litellm, ua.User.UserID, hash)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, utils.BadRequest("Cannot update a key that does not exist")
	}

	params := litellm.UpdateKeyParams{
		KeyHash:   key.KeyHash,
		MaxBudget: req.MaxBudget,
		Blocked:   req.Blocked,
	}
	if req.KeyAlias != nil && *req.KeyAlias != "" {
		full := utils.FullKeyAlias(ua.User.UserID, *req.KeyAlias)
		params.KeyAlias = &full
	}

	return nil, s.litellm.UpdateKey(r.Context(), params)
}

type deleteKeyRequest struct {
	KeyHash      string `json:"keyHash"`
	KeyOrKeyHash string `json:"keyOrKeyHash"` // Deprecated: use KeyHash.
}

// deleteKey deletes a key of the caller. Deleting a missing key succeeds.
func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	var req deleteKeyRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	hash, err := s.keyHashParam(r, req.KeyHash, req.KeyOrKeyHash)
	if err != nil {
		return nil, err
	}

	key, err := auth.OwnedKey(r.Context(), s.litellm, ua.User.UserID, hash)
	if err != nil || key == nil {
		return nil, err
	}

	return nil, s.litellm.DeleteKeys(r.Context(), []string{key.KeyHash})
}

func (s *Server) getKey(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	hash, err := s.keyHashParam(r, q.Get("keyHash"), q.Get("keyOrKeyHash"))
	if err != nil {
		return nil, err
	}

	key, err := auth.OwnedKey(r.Context(), s.litellm, ua.User.UserID, hash)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return jsonNull, nil
	}
	return newKeyView(*key), nil
}

type keyListResponse struct {
	Keys       []keyView `json:"keys"`
	TotalKeys  int       `json:"totalKeys"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	p, err := parsePagination(r.URL.Query())
	if err != nil {
		return nil, err
	}

	page, err := s.litellm.ListKeys(r.Context(), litellm.ListKeysParams{
		UserID:    ua.User.UserID,
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, err
	}

	resp := keyListResponse{
		Keys:       make([]keyView, 0, len(page.Keys)),
		TotalKeys:  page.TotalKeys,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for _, k := range page.Keys {
		resp.Keys = append(resp.Keys, newKeyView(k))
	}
	return resp, nil
}

// getSpendLogs returns the caller's spend on one key.
func (s *Server) getSpendLogs(w http.ResponseWriter, r *http.Request) (any, error) {
	ua, err := userAuth(r)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	hash, err := s.keyHashParam(r, q.Get("keyHash"), q.Get("keyOrKeyHash"))
	if err != nil {
		return nil, err
	}
	if err := isoDate("startDate", q.Get("startDate"), false); err != nil {
		return nil, err
	}
	if err := isoDate("endDate", q.Get("endDate"), false); err != nil {
		return nil, err
	}

	logs, err := s.litellm.GetSpendLogs(r.Context(), litellm.SpendLogsParams{
		UserID:    ua.User.UserID,
		KeyHash:   hash,
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	})
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.SpendLog{}
	}
	return logs, nil
}
