// Package signature finds the replica that served a chat completion and
// returns its signature of the exchange.
package signature

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/fanout"
	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/providers"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const notFoundMessage = "chat id not found or expired"

type ReplicaSource interface {
	ListInternalModelParams(ctx context.Context, modelName string) ([]models.InternalModelParams, error)
}

type AliasResolver interface {
	Resolve(ctx context.Context, model string) (string, error)
}

// Store is the durable signature cache.
type Store interface {
	Get(ctx context.Context, modelIDs []string, chatID string, algo models.SigningAlgo) (*models.SignatureRecord, error)
}

// ChatLookup maps a chat id onto the model id that produced it.
type ChatLookup interface {
	Lookup(ctx context.Context, chatID string) (string, error)
}

type ReplicaSigner interface {
	Signature(ctx context.Context, replica models.InternalModelParams, chatID string, algo models.SigningAlgo) (*models.Signature, error)
}

// Enqueuer persists fresh signatures without making the caller wait.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec models.SignatureRecord)
}

// Request is one /v1/signature/{chat_id} call.
type Request struct {
	ChatID      string
	Model       string
	SigningAlgo string
}

type Resolver struct {
	aliases  AliasResolver
	replicas ReplicaSource
	store    Store
	index    ChatLookup
	signer   ReplicaSigner
	queue    Enqueuer
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewResolver(
	aliases AliasResolver,
	replicas ReplicaSource,
	store Store,
	index ChatLookup,
	signer ReplicaSigner,
	queue Enqueuer,
	timeout time.Duration,
	m *metrics.Metrics,
) *Resolver {
	return &Resolver{
		aliases:  aliases,
		replicas: replicas,
		store:    store,
		index:    index,
		signer:   signer,
		queue:    queue,
		timeout:  timeout,
		metrics:  m,
		logger:   logging.For("signature"),
	}
}

// signed is a signature together with the replica that produced it.
type signed struct {
	replica models.InternalModelParams
	sig     *models.Signature
}

// Resolve returns the signature of req.ChatID. Stored signatures are served
// first. Otherwise the replica recorded in the chat index is asked directly,
// and failing that every replica is raced.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*models.Signature, error) {
	algo, ok := models.ParseSigningAlgo(req.SigningAlgo)
	if !ok {
		return nil, utils.BadRequest("signing_algo must be ecdsa or ed25519")
	}

	model, err := r.aliases.Resolve(ctx, req.Model)
	if err != nil {
		return nil, utils.Internal("Failed to resolve model alias", err)
	}

	replicas, err := r.replicas.ListInternalModelParams(ctx, model)
	if errors.Is(err, storage.ErrModelNotFound) {
		return nil, utils.BadRequest("Invalid model")
	}
	if err != nil {
		return nil, utils.Internal("Failed to resolve model", err)
	}

	ids := make([]string, len(replicas))
	for i, replica := range replicas {
		ids[i] = replica.ModelID
	}

	rec, err := r.store.Get(ctx, ids, req.ChatID, algo)
	switch {
	case err == nil:
		r.metrics.RecordCacheLookup("signature", true)
		return &rec.Signature, nil
	case errors.Is(err, storage.ErrSignatureNotFound):
		r.metrics.RecordCacheLookup("signature", false)
	default:
		r.logger.Warn("signature cache lookup failed", "chat_id", req.ChatID, "error", err)
	}

	var result *signed
	if replica, ok := r.knownReplica(ctx, req.ChatID, replicas); ok {
		result, err = r.fromReplica(ctx, replica, req.ChatID, algo)
	} else {
		result, err = r.race(ctx, replicas, req.ChatID, algo)
	}
	if err != nil {
		return nil, err
	}

	r.queue.Enqueue(ctx, models.SignatureRecord{
		ModelID:   result.replica.ModelID,
		ChatID:    req.ChatID,
		Model:     result.replica.Model,
		Signature: *result.sig,
	})

	return result.sig, nil
}

func (r *Resolver) knownReplica(ctx context.Context, chatID string, replicas []models.InternalModelParams) (models.InternalModelParams, bool) {
	modelID, err := r.index.Lookup(ctx, chatID)
	if err != nil {
		if !errors.Is(err, storage.ErrChatNotIndexed) {
			r.logger.Warn("chat index lookup failed", "chat_id", chatID, "error", err)
		}
		return models.InternalModelParams{}, false
	}

	i := slices.IndexFunc(replicas, func(p models.InternalModelParams) bool {
		return p.ModelID == modelID
	})
	if i < 0 {
		return models.InternalModelParams{}, false
	}
	return replicas[i], true
}

func (r *Resolver) fromReplica(ctx context.Context, replica models.InternalModelParams, chatID string, algo models.SigningAlgo) (*signed, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sig, err := r.signer.Signature(ctx, replica, chatID, algo)
	if providers.IsReplicaNotFound(err) {
		return nil, utils.NotFound(notFoundMessage, err)
	}
	if err != nil {
		return nil, utils.Internal("Failed to get signature", err)
	}
	return &signed{replica: replica, sig: sig}, nil
}

func (r *Resolver) race(ctx context.Context, replicas []models.InternalModelParams, chatID string, algo models.SigningAlgo) (*signed, error) {
	tasks := make([]fanout.Task[*signed], len(replicas))
	for i, replica := range replicas {
		tasks[i] = func(ctx context.Context) (*signed, error) {
			sig, err := r.signer.Signature(ctx, replica, chatID, algo)
			if err != nil {
				return nil, err
			}
			return &signed{replica: replica, sig: sig}, nil
		}
	}

	result, err := fanout.FirstSuccess(ctx, r.timeout, tasks)
	if err != nil {
		r.logger.Info("no replica has the chat",
			"chat_id", chatID,
			"replicas", len(replicas),
			"errors", err.Error())
		return nil, utils.NotFound(notFoundMessage, err)
	}
	return result, nil
}
