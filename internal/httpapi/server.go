// Package httpapi exposes the gateway's HTTP routes: the OpenAI-compatible
// surface with attestation and signatures, and the user, key, model,
// credential and stats management routes backed by LiteLLM.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/attestation"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/queue"
	"github.com/think-in-universe/nearai-cloud-server/internal/signature"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
)

// AttestationReporter produces the merged attestation of a model.
type AttestationReporter interface {
	Report(ctx context.Context, req attestation.Request) (*models.MergedAttestation, error)
}

// SignatureResolver returns a replica's signature of a chat.
type SignatureResolver interface {
	Resolve(ctx context.Context, req signature.Request) (*models.Signature, error)
}

// ModelStore reads the model registry straight from the LiteLLM database.
type ModelStore interface {
	GetModelIDByName(ctx context.Context, modelName string) (string, error)
	ListModels(ctx context.Context, offset, limit int) ([]models.Model, int, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BreakerReporter lists replicas whose circuit breaker is not closed.
type BreakerReporter interface {
	Unavailable() map[string]string
}

// DeadLetters lists and requeues signatures that could not be persisted.
type DeadLetters interface {
	DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[models.SignatureRecord], error)
	RetryDeadLetterItem(ctx context.Context, id string) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	// LiteLLM authenticates as the master key. Its per-key clones act on
	// behalf of callers.
	LiteLLM *litellm.Client
	// Chat has no client timeout so long completions can stream.
	Chat         *litellm.Client
	Models       ModelStore
	Attestations AttestationReporter
	Signatures   SignatureResolver
	ChatIndex    storage.ChatIndex
	Auth         *middleware.Auth
	Metrics      *metrics.Metrics
	// HealthChecks are probed by /health, keyed by the name reported.
	HealthChecks map[string]HealthChecker
	Breakers     BreakerReporter
	DeadLetters  DeadLetters

	ModelListTTL  time.Duration
	ModelListSize int
	IsDevelopment bool
}

// Server holds the route handlers.
type Server struct {
	litellm      *litellm.Client
	chat         *litellm.Client
	models       ModelStore
	attestations AttestationReporter
	signatures   SignatureResolver
	chatIndex    storage.ChatIndex
	auth         *middleware.Auth
	metrics      *metrics.Metrics
	health       map[string]HealthChecker
	breakers     BreakerReporter
	deadLetters  DeadLetters
	modelList    *storage.LRUCache[*modelPage]
	isDev        bool
	logger       *slog.Logger
}

// NewServer creates a server from deps. A nil ChatIndex disables chat
// indexing and a nil Chat client falls back to LiteLLM.
func NewServer(deps Dependencies) *Server {
	chat := deps.Chat
	if chat == nil {
		chat = deps.LiteLLM
	}
	index := deps.ChatIndex
	if index == nil {
		index = storage.NoopChatIndex{}
	}

	return &Server{
		litellm:      deps.LiteLLM,
		chat:         chat,
		models:       deps.Models,
		attestations: deps.Attestations,
		signatures:   deps.Signatures,
		chatIndex:    index,
		auth:         deps.Auth,
		metrics:      deps.Metrics,
		health:       deps.HealthChecks,
		breakers:     deps.Breakers,
		deadLetters:  deps.DeadLetters,
		modelList:    storage.NewLRUCache[*modelPage](deps.ModelListSize, deps.ModelListTTL),
		isDev:        deps.IsDevelopment,
		logger:       logging.For("httpapi"),
	}
}

// ModelListCache exposes the model list cache to the sweeper.
func (s *Server) ModelListCache() storage.Sweepable {
	return s.modelList
}
