package litellm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// GenerateKeyParams mirrors /key/generate. Zero values are omitted.
type GenerateKeyParams struct {
	KeyType   string         `json:"key_type,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	TeamID    string         `json:"team_id,omitempty"`
	KeyAlias  string         `json:"key_alias,omitempty"`
	Duration  string         `json:"duration,omitempty"`
	Models    []string       `json:"models,omitempty"`
	MaxBudget *float64       `json:"max_budget,omitempty"`
	RPMLimit  *int64         `json:"rpm_limit,omitempty"`
	TPMLimit  *int64         `json:"tpm_limit,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GenerateKey creates a key. The raw secret is only ever returned here.
func (c *Client) GenerateKey(ctx context.Context, p GenerateKeyParams) (*models.GeneratedKey, error) {
	var resp models.GeneratedKey
	if err := c.do(ctx, request{method: http.MethodPost, path: "/key/generate", body: p}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateServiceAccountKey creates an unowned key tagged with
// serviceAccountID in its metadata.
func (c *Client) GenerateServiceAccountKey(ctx context.Context, serviceAccountID string, p GenerateKeyParams) (*models.GeneratedKey, error) {
	p.UserID = ""
	p.Metadata = map[string]any{models.ServiceAccountMetadataKey: serviceAccountID}
	return c.GenerateKey(ctx, p)
}

// UpdateKeyParams mirrors /key/update. Nil fields are left unchanged.
type UpdateKeyParams struct {
	KeyHash   string   `json:"key"`
	KeyAlias  *string  `json:"key_alias,omitempty"`
	MaxBudget *float64 `json:"max_budget,omitempty"`
	Blocked   *bool    `json:"blocked,omitempty"`
}

func (c *Client) UpdateKey(ctx context.Context, p UpdateKeyParams) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/key/update", body: p}, nil)
}

// DeleteKeys deletes keys by hash.
func (c *Client) DeleteKeys(ctx context.Context, keyHashes []string) error {
	body := struct {
		Keys []string `json:"keys"`
	}{keyHashes}
	return c.do(ctx, request{method: http.MethodPost, path: "/key/delete", body: body}, nil)
}

type keyInfo struct {
	KeyName        string         `json:"key_name"`
	KeyAlias       *string        `json:"key_alias"`
	Spend          float64        `json:"spend"`
	Expires        *string        `json:"expires"`
	Models         []string       `json:"models"`
	UserID         *string        `json:"user_id"`
	TeamID         *string        `json:"team_id"`
	RPMLimit       *int64         `json:"rpm_limit"`
	TPMLimit       *int64         `json:"tpm_limit"`
	BudgetID       *string        `json:"budget_id"`
	MaxBudget      *float64       `json:"max_budget"`
	BudgetDuration *string        `json:"budget_duration"`
	BudgetResetAt  *string        `json:"budget_reset_at"`
	Blocked        *bool          `json:"blocked"`
	CreatedAt      string         `json:"created_at"`
	Metadata       map[string]any `json:"metadata"`
}

func (k keyInfo) toModel(hash string) models.Key {
	return models.Key{
		KeyHash:        hash,
		KeyName:        k.KeyName,
		KeyAlias:       k.KeyAlias,
		Spend:          k.Spend,
		Expires:        k.Expires,
		Models:         k.Models,
		UserID:         k.UserID,
		TeamID:         k.TeamID,
		RPMLimit:       k.RPMLimit,
		TPMLimit:       k.TPMLimit,
		BudgetID:       k.BudgetID,
		MaxBudget:      k.MaxBudget,
		BudgetDuration: k.BudgetDuration,
		BudgetResetAt:  k.BudgetResetAt,
		Blocked:        k.Blocked,
		CreatedAt:      k.CreatedAt,
		Metadata:       k.Metadata,
	}
}

// GetKey returns the key identified by keyOrHash, or nil when LiteLLM does
// not know it.
func (c *Client) GetKey(ctx context.Context, keyOrHash string) (*models.Key, error) {
	var resp struct {
		Key  string  `json:"key"`
		Info keyInfo `json:"info"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/key/info",
		query:  url.Values{"key": {keyOrHash}},
	}, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	key := resp.Info.toModel(resp.Key)
	return &key, nil
}

// ListKeysParams pages over a user's keys.
type ListKeysParams struct {
	UserID    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// KeyPage is one page of keys.
type KeyPage struct {
	Keys       []models.Key `json:"keys"`
	TotalKeys  int          `json:"totalKeys"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

func (c *Client) ListKeys(ctx context.Context, p ListKeysParams) (*KeyPage, error) {
	if p.PageSize == 0 {
		p.PageSize = 10
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	if p.SortOrder == "" {
		p.SortOrder = "desc"
	}

	q := url.Values{}
	setString(q, "user_id", p.UserID)
	setInt(q, "page", p.Page)
	setInt(q, "size", p.PageSize)
	q.Set("return_full_object", "true")
	q.Set("sort_by", p.SortBy)
	q.Set("sort_order", p.SortOrder)

	var resp struct {
		Keys []struct {
			Token string `json:"token"`
			keyInfo
		} `json:"keys"`
		TotalCount  int `json:"total_count"`
		CurrentPage int `json:"current_page"`
		TotalPages  int `json:"total_pages"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/key/list", query: q}, &resp); err != nil {
		return nil, err
	}

	page := &KeyPage{
		Keys:       make([]models.Key, 0, len(resp.Keys)),
		TotalKeys:  resp.TotalCount,
		Page:       resp.CurrentPage,
		PageSize:   p.PageSize,
		TotalPages: resp.TotalPages,
	}
	for _, k := range resp.Keys {
		page.Keys = append(page.Keys, k.keyInfo.toModel(k.Token))
	}
	return page, nil
}
