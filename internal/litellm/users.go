package litellm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

const defaultUserRole = "internal_user_viewer"

// RegisterUserParams creates a LiteLLM user for an identity.
type RegisterUserParams struct {
	UserID    string
	UserEmail string
	TeamID    string
}

// RegisterUser creates a user with a zero budget and no key.
func (c *Client) RegisterUser(ctx context.Context, p RegisterUserParams) error {
	body := map[string]any{
		"user_id":         p.UserID,
		"max_budget":      0,
		"auto_create_key": false,
		"user_role":       defaultUserRole,
	}
	if p.UserEmail != "" {
		body["user_email"] = p.UserEmail
	}
	if p.TeamID != "" {
		body["team_id"] = p.TeamID
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/user/new", body: body}, nil)
}

type userInfo struct {
	UserID    *string  `json:"user_id"`
	UserEmail *string  `json:"user_email"`
	MaxBudget *float64 `json:"max_budget"`
	Spend     float64  `json:"spend"`
}

func (u userInfo) toModel() models.User {
	user := models.User{UserEmail: u.UserEmail, MaxBudget: u.MaxBudget, Spend: u.Spend}
	if u.UserID != nil {
		user.UserID = *u.UserID
	}
	return user
}

// GetUser returns the user, or nil when LiteLLM has no record of userID.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var resp struct {
		UserInfo userInfo `json:"user_info"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/user/info",
		query:  url.Values{"user_id": {userID}},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.UserInfo.UserID == nil || *resp.UserInfo.UserID == "" {
		return nil, nil
	}
	user := resp.UserInfo.toModel()
	return &user, nil
}

// ListUsersParams pages over users.
type ListUsersParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UserPage is one page of users.
type UserPage struct {
	Users      []models.User `json:"users"`
	TotalUsers int           `json:"totalUsers"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

func (c *Client) ListUsers(ctx context.Context, p ListUsersParams) (*UserPage, error) {
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
	setInt(q, "page", p.Page)
	setInt(q, "page_size", p.PageSize)
	q.Set("sort_by", p.SortBy)
	q.Set("sort_order", p.SortOrder)

	var resp struct {
		Users      []userInfo `json:"users"`
		Total      int        `json:"total"`
		Page       int        `json:"page"`
		PageSize   int        `json:"page_size"`
		TotalPages int        `json:"total_pages"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/user/list", query: q}, &resp); err != nil {
		return nil, err
	}

	page := &UserPage{
		Users:      make([]models.User, 0, len(resp.Users)),
		TotalUsers: resp.Total,
		Page:       resp.Page,
		PageSize:   resp.PageSize,
		TotalPages: resp.TotalPages,
	}
	for _, u := range resp.Users {
		page.Users = append(page.Users, u.toModel())
	}
	return page, nil
}

// ManageUser sets a user's budget. A nil budget means unlimited.
func (c *Client) ManageUser(ctx context.Context, userID string, maxBudget *float64) error {
	body := struct {
		UserID    string   `json:"user_id"`
		MaxBudget *float64 `json:"max_budget"`
	}{userID, maxBudget}
	return c.do(ctx, request{method: http.MethodPost, path: "/user/update", body: body}, nil)
}
