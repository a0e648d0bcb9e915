package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const maxBodySize = 1 << 20

// jsonNull is written as a 200 with a literal null body. A nil payload is a
// 204 instead.
var jsonNull = json.RawMessage("null")

// handlerFunc returns the payload to encode as JSON, or an error to write as
// an error envelope.
type handlerFunc func(w http.ResponseWriter, r *http.Request) (any, error)

func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := fn(w, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if payload == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := utils.RespondWithJSON(w, http.StatusOK, payload); err != nil {
			s.logger.Warn("failed to write response",
				"path", r.URL.Path,
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
	}
}

// fail writes err as an error envelope. Server errors are logged with their
// cause; client errors only at debug.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := utils.RespondWithError(w, upstreamError(err), s.isDev)

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", httpErr.Status,
		"error", httpErr.Error(),
		"request_id", middleware.GetRequestID(r.Context()),
	}
	if a, ok := auth.FromContext(r.Context()); ok {
		if userID := auth.UserID(a); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
	}
	if httpErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
		return
	}
	s.logger.Debug("request failed", attrs...)
}

// upstreamError maps a LiteLLM error response onto the gateway's envelope
// with the same status. Other errors pass through.
func upstreamError(err error) error {
	var httpErr *utils.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var apiErr *litellm.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	out := utils.NewHTTPError(apiErr.Status, apiErr.Message, err)
	if apiErr.Type != nil {
		out.Type = *apiErr.Type
	}
	out.Param = apiErr.Param
	out.Code = apiErr.Code
	return out
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return utils.BadRequest("Missing request body")
		}
		return utils.NewHTTPError(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}
