package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/think-in-universe/nearai-cloud-server/internal/attestation"
	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/signature"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const (
	chatIndexTimeout = 2 * time.Second
	// The completion id is the first field of the body or of the first
	// stream chunk, so only the head of the response is searched.
	chatIDSearchLimit = 64 << 10
)

var chatIDPattern = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"`)

// keyAuth returns the caller's key from the request context. The Key
// middleware guarantees it is present.
func keyAuth(r *http.Request) (auth.KeyAuth, error) {
	ka, ok := auth.From[auth.KeyAuth](r.Context())
	if !ok {
		return auth.KeyAuth{}, utils.Unauthorized("Missing authorization token", nil)
	}
	return ka, nil
}

// handleChatCompletions forwards the body to LiteLLM as the caller and
// streams the response back unchanged.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	ka, err := keyAuth(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.chat.WithAPIKey(ka.Token).ChatCompletions(r.Context(), r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	streaming := strings.HasPrefix(contentType, "text/event-stream")
	if streaming {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	} else if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if modelID := resp.Header.Get(litellm.ModelIDHeader); modelID != "" {
		w.Header().Set(litellm.ModelIDHeader, modelID)
	}
	w.WriteHeader(resp.StatusCode)

	sniffer := &chatIDSniffer{}
	if err := pipe(w, io.TeeReader(resp.Body, sniffer), streaming); err != nil {
		s.logger.Debug("chat completion stream interrupted",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}

	s.indexChat(r, resp.Header.Get(litellm.ModelIDHeader), sniffer.id())
}

// pipe copies src to w, flushing after every chunk when streaming.
func pipe(w http.ResponseWriter, src io.Reader, streaming bool) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32<<10)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if streaming && flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// indexChat remembers which replica served chatID. Failures only cost the
// signature lookup its shortcut.
func (s *Server) indexChat(r *http.Request, modelID, chatID string) {
	if modelID == "" || chatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), chatIndexTimeout)
	defer cancel()
	if err := s.chatIndex.Put(ctx, chatID, modelID); err != nil {
		s.logger.Warn("failed to index chat",
			"chat_id", chatID,
			"model_id", modelID,
			"error", err,
		)
	}
}

// chatIDSniffer captures the first "id" field written through it.
type chatIDSniffer struct {
	head  []byte
	found string
	done  bool
}

func (c *chatIDSniffer) Write(p []byte) (int, error) {
	if c.done {
		return len(p), nil
	}
	room := chatIDSearchLimit - len(c.head)
	if room > len(p) {
		room = len(p)
	}
	c.head = append(c.head, p[:room]...)
	if m := chatIDPattern.FindSubmatch(c.head); m != nil {
		c.found = string(m[1])
		c.done = true
		c.head = nil
	} else if len(c.head) >= chatIDSearchLimit {
		c.done = true
		c.head = nil
	}
	return len(p), nil
}

func (c *chatIDSniffer) id() string {
	return c.found
}

func (s *Server) listOpenAIModels(w http.ResponseWriter, r *http.Request) (any, error) {
	ka, err := keyAuth(r)
	if err != nil {
		return nil, err
	}
	return s.litellm.WithAPIKey(ka.Token).Models(r.Context())
}

func (s *Server) attestationReport(w http.ResponseWriter, r *http.Request) (any, error) {
	q := r.URL.Query()
	if err := required("model", q.Get("model")); err != nil {
		return nil, err
	}

	var algo models.SigningAlgo
	if raw := q.Get("signing_algo"); raw != "" {
		parsed, ok := models.ParseSigningAlgo(raw)
		if !ok {
			return nil, utils.BadRequest("signing_algo must be ecdsa or ed25519")
		}
		algo = parsed
	}

	return s.attestations.Report(r.Context(), attestation.Request{
		Model:          q.Get("model"),
		Nonce:          q.Get("nonce"),
		SigningAlgo:    algo,
		SigningAddress: q.Get("signing_address"),
	})
}

func (s *Server) signature(w http.ResponseWriter, r *http.Request) (any, error) {
	q := r.URL.Query()
	if err := required("model", q.Get("model")); err != nil {
		return nil, err
	}

	return s.signatures.Resolve(r.Context(), signature.Request{
		ChatID:      chi.URLParam(r, "chat_id"),
		Model:       q.Get("model"),
		SigningAlgo: q.Get("signing_algo"),
	})
}
