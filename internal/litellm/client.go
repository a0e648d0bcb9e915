// Package litellm is a typed client for the LiteLLM proxy's management and
// OpenAI-compatible REST API.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from LiteLLM. Message, Type, Param and Code
// come from the {"error": {...}} envelope when the body carries one.
type APIError struct {
	Status  int
	Message string
	Type    *string
	Param   *string
	Code    *string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("litellm: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a LiteLLM 404, by status or by the
// envelope code LiteLLM uses on /key/info.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusNotFound || (apiErr.Code != nil && *apiErr.Code == "404")
}

// IsBadRequest reports whether err is a LiteLLM 400.
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

// Client calls LiteLLM authenticated with one bearer token.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithAPIKey returns a client sharing the connection pool but authenticated
// as apiKey. Used to act on behalf of a caller's own key.
func (c *Client) WithAPIKey(apiKey string) *Client {
	clone := *c
	clone.apiKey = apiKey
	return &clone
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
}

// send performs the request and returns the response when the status is
// 2xx. The caller closes the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	switch b := r.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("litellm %s %s: %w", r.method, r.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// do performs the request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding litellm %s response: %w", r.path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var envelope struct {
		Error *struct {
			Message json.RawMessage `json:"message"`
			Type    *string         `json:"type"`
			Param   *string         `json:"param"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return apiErr
	}

	if msg := rawString(envelope.Error.Message); msg != "" {
		apiErr.Message = msg
	}
	apiErr.Type = envelope.Error.Type
	apiErr.Param = envelope.Error.Param
	if code := rawString(envelope.Error.Code); code != "" {
		apiErr.Code = &code
	}
	return apiErr
}

// rawString renders a JSON string or number as a plain string. LiteLLM sends
// codes as either.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, fmt.Sprint(v))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
