package litellm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// SpendLogsParams filters /spend/logs.
type SpendLogsParams struct {
	UserID    string
	KeyHash   string
	StartDate string
	EndDate   string
}

func (c *Client) GetSpendLogs(ctx context.Context, p SpendLogsParams) ([]models.SpendLog, error) {
	q := url.Values{}
	setString(q, "user_id", p.UserID)
	setString(q, "api_key", p.KeyHash)
	setString(q, "start_date", p.StartDate)
	setString(q, "end_date", p.EndDate)
	q.Set("summarize", "false")

	var logs []struct {
		RequestID        string  `json:"request_id"`
		User             string  `json:"user"`
		APIKey           string  `json:"api_key"`
		Status           string  `json:"status"`
		CallType         string  `json:"call_type"`
		Spend            float64 `json:"spend"`
		PromptTokens     int64   `json:"prompt_tokens"`
		CompletionTokens int64   `json:"completion_tokens"`
		TotalTokens      int64   `json:"total_tokens"`
		ModelID          string  `json:"model_id"`
		ModelGroup       string  `json:"model_group"`
		StartTime        string  `json:"startTime"`
		EndTime          string  `json:"endTime"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/spend/logs", query: q}, &logs); err != nil {
		return nil, err
	}

	out := make([]models.SpendLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, models.SpendLog{
			RequestID:        l.RequestID,
			UserID:           l.User,
			KeyHash:          l.APIKey,
			Status:           l.Status,
			CallType:         l.CallType,
			Spend:            l.Spend,
			PromptTokens:     l.PromptTokens,
			CompletionTokens: l.CompletionTokens,
			TotalTokens:      l.TotalTokens,
			ModelID:          l.ModelID,
			Model:            l.ModelGroup,
			StartTime:        l.StartTime,
			EndTime:          l.EndTime,
		})
	}
	return out, nil
}

// DailyActivityParams filters the daily activity endpoints. Tags is only
// used by the tag variant.
type DailyActivityParams struct {
	Tags      []string
	StartDate string
	EndDate   string
	Page      int
	PageSize  int
}

func (p DailyActivityParams) query() url.Values {
	if p.PageSize == 0 {
		p.PageSize = 10
	}
	q := url.Values{}
	if len(p.Tags) > 0 {
		q.Set("tags", strings.Join(p.Tags, ","))
	}
	q.Set("start_date", p.StartDate)
	q.Set("end_date", p.EndDate)
	setInt(q, "page", p.Page)
	setInt(q, "page_size", p.PageSize)
	return q
}

// GetUserDailyActivity returns LiteLLM's aggregate as-is.
func (c *Client) GetUserDailyActivity(ctx context.Context, p DailyActivityParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/user/daily/activity", query: p.query()}, &out)
	return out, err
}

// GetTagDailyActivity returns LiteLLM's aggregate as-is.
func (c *Client) GetTagDailyActivity(ctx context.Context, p DailyActivityParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/tag/daily/activity", query: p.query()}, &out)
	return out, err
}
