package litellm

import (
	"context"
	"io"
	"net/http"
)

// ModelIDHeader names the replica LiteLLM routed a completion to.
const ModelIDHeader = "x-litellm-model-id"

// ChatCompletions forwards body unchanged and returns the upstream response
// for streaming back to the caller. The caller closes the body. Non-2xx
// responses are returned as *APIError.
func (c *Client) ChatCompletions(ctx context.Context, body io.Reader) (*http.Response, error) {
	return c.send(ctx, request{
		method: http.MethodPost,
		path:   "/chat/completions",
		body:   body,
	})
}
