// Package providers talks to the private model replicas behind a public
// model name, and to the dstack agent that attests the gateway itself.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// ReplicaError is a non-2xx answer from a replica.
type ReplicaError struct {
	ModelID string
	Status  int
	Message string
}

func (e *ReplicaError) Error() string {
	return fmt.Sprintf("replica %s: %d %s", e.ModelID, e.Status, e.Message)
}

// IsReplicaNotFound reports whether err is a replica 404.
func IsReplicaNotFound(err error) bool {
	var re *ReplicaError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// AttestationQuery holds the optional hints forwarded to /attestation/report.
type AttestationQuery struct {
	Nonce          string
	SigningAlgo    models.SigningAlgo
	SigningAddress string
}

// ReplicaClient calls the attestation and signature endpoints of private
// model replicas. One client serves every replica; the target comes from the
// InternalModelParams of each call and every call goes through that replica's
// circuit breaker.
type ReplicaClient struct {
	client   *http.Client
	breakers *BreakerRegistry
	metrics  *metrics.Metrics
}

// NewReplicaClient creates a client. Timeouts are applied per call by the
// caller's context.
func NewReplicaClient(breakers *BreakerRegistry, m *metrics.Metrics) *ReplicaClient {
	return &ReplicaClient{
		client:   &http.Client{},
		breakers: breakers,
		metrics:  m,
	}
}

// AttestationReport fetches the replica's attestation report for its model.
func (c *ReplicaClient) AttestationReport(ctx context.Context, replica models.InternalModelParams, q AttestationQuery) (*models.AttestationReport, error) {
	query := url.Values{}
	query.Set("model", replica.Model)
	if q.Nonce != "" {
		query.Set("nonce", q.Nonce)
	}
	if q.SigningAlgo != "" {
		query.Set("signing_algo", string(q.SigningAlgo))
	}
	if q.SigningAddress != "" {
		query.Set("signing_address", q.SigningAddress)
	}

	return call(ctx, c, "attestation", replica, "/attestation/report", query, func(data []byte) (*models.AttestationReport, error) {
		var report models.AttestationReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, err
		}
		return &report, nil
	})
}

// Signature fetches the replica's signature of chatID.
func (c *ReplicaClient) Signature(ctx context.Context, replica models.InternalModelParams, chatID string, algo models.SigningAlgo) (*models.Signature, error) {
	query := url.Values{}
	query.Set("model", replica.Model)
	query.Set("signing_algo", string(algo))

	return call(ctx, c, "signature", replica, "/signature/"+url.PathEscape(chatID), query, func(data []byte) (*models.Signature, error) {
		var sig models.Signature
		if err := json.Unmarshal(data, &sig); err != nil {
			return nil, err
		}
		if sig.Signature == "" {
			return nil, errors.New("empty signature")
		}
		if sig.SigningAlgo == "" {
			sig.SigningAlgo = algo
		}
		return &sig, nil
	})
}

func call[T any](ctx context.Context, c *ReplicaClient, operation string, replica models.InternalModelParams, path string, query url.Values, decode func([]byte) (T, error)) (T, error) {
	start := time.Now()

	result, err := execute(ctx, c.breakers, replica.ModelID, func() (T, error) {
		var zero T

		data, err := c.get(ctx, replica, path, query)
		if err != nil {
			return zero, err
		}
		out, err := decode(data)
		if err != nil {
			return zero, fmt.Errorf("decoding %s from replica %s: %w", path, replica.ModelID, err)
		}
		return out, nil
	})

	c.metrics.RecordReplicaCall(operation, outcome(err), time.Since(start))
	return result, err
}

func (c *ReplicaClient) get(ctx context.Context, replica models.InternalModelParams, path string, query url.Values) ([]byte, error) {
	u := strings.TrimRight(replica.APIURL, "/") + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+replica.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replica %s GET %s: %w", replica.ModelID, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading replica %s response: %w", replica.ModelID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ReplicaError{
			ModelID: replica.ModelID,
			Status:  resp.StatusCode,
			Message: errorMessage(data, resp.StatusCode),
		}
	}
	return data, nil
}

// errorMessage pulls a message out of an OpenAI-style or FastAPI-style error
// body, falling back to the status text.
func errorMessage(data []byte, status int) string {
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
	}
	return http.StatusText(status)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrReplicaUnavailable):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case IsReplicaNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
