package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNonce = "0101010101010101010101010101010101010101010101010101010101010101"

func TestDstackDisabled(t *testing.T) {
	c := NewDstackClient("", time.Second)
	assert.False(t, c.Enabled())

	_, err := c.GatewayAttestation(context.Background(), testNonce)
	assert.ErrorIs(t, err, ErrDstackDisabled)
}

func TestDstackGatewayAttestation(t *testing.T) {
	var reportData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/GetQuote":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			reportData = body["report_data"]
			_, _ = io.WriteString(w, `{"quote":"0xquote","event_log":"[{\"imr\":3,\"event\":\"app-id\"}]"}`)
		case "/Info":
			_, _ = io.WriteString(w, `{"app_id":"gateway","instance_id":"i-1"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewDstackClient(srv.URL+"/", time.Second)
	require.True(t, c.Enabled())

	att, err := c.GatewayAttestation(context.Background(), testNonce)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("00", NonceSize)+testNonce, reportData)
	assert.Equal(t, testNonce, att.RequestNonce)
	assert.Equal(t, "0xquote", att.IntelQuote)
	assert.JSONEq(t, `[{"imr":3,"event":"app-id"}]`, string(att.EventLog))
	assert.JSONEq(t, `{"app_id":"gateway","instance_id":"i-1"}`, string(att.Info))
}

func TestDstackRejectsBadNonce(t *testing.T) {
	c := NewDstackClient("http://127.0.0.1:1", time.Second)
	_, err := c.GatewayAttestation(context.Background(), "abcd")
	assert.Error(t, err)
}

func TestDstackAgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quote unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewDstackClient(srv.URL, time.Second).GatewayAttestation(context.Background(), testNonce)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quote unavailable")
}
