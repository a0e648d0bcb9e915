package httpapi

import (
	"net/http"
	"strings"

	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
)

func dailyActivityParams(r *http.Request) (litellm.DailyActivityParams, error) {
	q := r.URL.Query()
	if err := isoDate("startDate", q.Get("startDate"), true); err != nil {
		return litellm.DailyActivityParams{}, err
	}
	if err := isoDate("endDate", q.Get("endDate"), true); err != nil {
		return litellm.DailyActivityParams{}, err
	}
	p, err := parsePagination(q)
	if err != nil {
		return litellm.DailyActivityParams{}, err
	}

	params := litellm.DailyActivityParams{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
	if tags := q.Get("tags"); tags != "" {
		params.Tags = strings.Split(tags, ",")
	}
	return params, nil
}

func (s *Server) getUserDailyActivity(w http.ResponseWriter, r *http.Request) (any, error) {
	params, err := dailyActivityParams(r)
	if err != nil {
		return nil, err
	}
	params.Tags = nil
	return s.litellm.GetUserDailyActivity(r.Context(), params)
}

func (s *Server) getTagDailyActivity(w http.ResponseWriter, r *http.Request) (any, error) {
	params, err := dailyActivityParams(r)
	if err != nil {
		return nil, err
	}
	return s.litellm.GetTagDailyActivity(r.Context(), params)
}
