package httpapi

import (
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

func sessionAuth(r *http.Request) (auth.SessionAuth, error) {
	sa, ok := auth.From[auth.SessionAuth](r.Context())
	if !ok {
		return auth.SessionAuth{}, utils.Unauthorized("Missing authorization token", nil)
	}
	return sa, nil
}

// registerUser creates the LiteLLM user of the calling identity.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) (any, error) {
	sa, err := sessionAuth(r)
	if err != nil {
		return nil, err
	}

	err = s.litellm.RegisterUser(r.Context(), litellm.RegisterUserParams{
		UserID:    sa.Identity.ID,
		UserEmail: sa.Identity.Email,
	})
	return nil, err
}

// getUser returns the caller's LiteLLM user, or null before registration.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) (any, error) {
	sa, err := sessionAuth(r)
	if err != nil {
		return nil, err
	}

	user, err := s.litellm.GetUser(r.Context(), sa.Identity.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return jsonNull, nil
	}
	return user, nil
}

type manageUserRequest struct {
	UserID    string   `json:"userId"`
	MaxBudget *float64 `json:"maxBudget"`
}

func (s *Server) manageUser(w http.ResponseWriter, r *http.Request) (any, error) {
	var req manageUserRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("userId", req.UserID); err != nil {
		return nil, err
	}

	return nil, s.litellm.ManageUser(r.Context(), req.UserID, req.MaxBudget)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) (any, error) {
	p, err := parsePagination(r.URL.Query())
	if err != nil {
		return nil, err
	}

	return s.litellm.ListUsers(r.Context(), litellm.ListUsersParams{
		Page:     p.Page,
		PageSize: p.PageSize,
	})
}
