package providers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// NonceSize is the length in bytes of an attestation nonce.
const NonceSize = 32

// ErrDstackDisabled is returned when no dstack endpoint is configured.
var ErrDstackDisabled = errors.New("dstack agent not configured")

// DstackClient asks the local dstack guest agent for a TDX quote of the
// gateway. The endpoint is either an http(s) URL or the path of the agent's
// unix socket.
type DstackClient struct {
	baseURL string
	client  *http.Client
}

// NewDstackClient returns nil when endpoint is empty.
func NewDstackClient(endpoint string, timeout time.Duration) *DstackClient {
	if endpoint == "" {
		return nil
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return &DstackClient{
			baseURL: strings.TrimRight(endpoint, "/"),
			client:  &http.Client{Timeout: timeout},
		}
	}

	socket := endpoint
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
	return &DstackClient{
		baseURL: "http://localhost",
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Enabled reports whether gateway attestation can be produced.
func (c *DstackClient) Enabled() bool {
	return c != nil
}

// GatewayAttestation quotes the report data 32 zero bytes || nonce, where
// nonceHex is an already validated 32 byte hex nonce.
func (c *DstackClient) GatewayAttestation(ctx context.Context, nonceHex string) (*models.GatewayAttestation, error) {
	if !c.Enabled() {
		return nil, ErrDstackDisabled
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d hex-encoded bytes", NonceSize)
	}

	reportData := make([]byte, 0, 2*NonceSize)
	reportData = append(reportData, make([]byte, NonceSize)...)
	reportData = append(reportData, nonce...)

	var quote struct {
		Quote    string `json:"quote"`
		EventLog string `json:"event_log"`
	}
	if err := c.post(ctx, "/GetQuote", map[string]string{"report_data": hex.EncodeToString(reportData)}, &quote); err != nil {
		return nil, err
	}

	var info json.RawMessage
	if err := c.post(ctx, "/Info", map[string]string{}, &info); err != nil {
		return nil, err
	}

	att := &models.GatewayAttestation{
		RequestNonce: nonceHex,
		IntelQuote:   quote.Quote,
		Info:         info,
	}
	if quote.EventLog != "" {
		if !json.Valid([]byte(quote.EventLog)) {
			return nil, errors.New("dstack returned an event log that is not JSON")
		}
		att.EventLog = json.RawMessage(quote.EventLog)
	}
	return att, nil
}

func (c *DstackClient) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dstack %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("dstack %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding dstack %s response: %w", path, err)
	}
	return nil
}
