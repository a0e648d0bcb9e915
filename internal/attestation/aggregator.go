// Package attestation merges the attestation reports of every replica
// behind a model name into one view, together with a quote of the gateway.
package attestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/fanout"
	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/notify"
	"github.com/think-in-universe/nearai-cloud-server/internal/providers"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// ReplicaSource lists the replicas registered under a model name.
type ReplicaSource interface {
	ListInternalModelParams(ctx context.Context, modelName string) ([]models.InternalModelParams, error)
}

// AliasResolver maps a public model name onto the registered one.
type AliasResolver interface {
	Resolve(ctx context.Context, model string) (string, error)
}

// ReplicaAttester fetches one replica's report.
type ReplicaAttester interface {
	AttestationReport(ctx context.Context, replica models.InternalModelParams, q providers.AttestationQuery) (*models.AttestationReport, error)
}

// GatewayAttester quotes the gateway itself.
type GatewayAttester interface {
	Enabled() bool
	GatewayAttestation(ctx context.Context, nonce string) (*models.GatewayAttestation, error)
}

// Request is one /v1/attestation/report call.
type Request struct {
	Model          string
	Nonce          string
	SigningAlgo    models.SigningAlgo
	SigningAddress string
}

// Config controls fan-out and caching.
type Config struct {
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// Aggregator produces merged attestation reports.
type Aggregator struct {
	aliases  AliasResolver
	replicas ReplicaSource
	attester ReplicaAttester
	gateway  GatewayAttester
	notifier notify.Notifier
	cache    *storage.LRUCache[*models.MergedAttestation]
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. gateway may report itself disabled,
// in which case merged reports carry no gateway attestation.
func NewAggregator(
	aliases AliasResolver,
	replicas ReplicaSource,
	attester ReplicaAttester,
	gateway GatewayAttester,
	notifier notify.Notifier,
	cfg Config,
	m *metrics.Metrics,
) *Aggregator {
	return &Aggregator{
		aliases:  aliases,
		replicas: replicas,
		attester: attester,
		gateway:  gateway,
		notifier: notifier,
		cache:    storage.NewLRUCache[*models.MergedAttestation](cfg.CacheSize, cfg.CacheTTL),
		timeout:  cfg.Timeout,
		metrics:  m,
		logger:   logging.For("attestation"),
	}
}

// Cache exposes the report cache to the sweeper.
func (a *Aggregator) Cache() storage.Sweepable {
	return a.cache
}

// Report returns the merged report for req.Model. The cache is keyed by the
// resolved model name only, so a cached report is returned as is until it
// expires, with the nonce and signing key of the request that filled it.
func (a *Aggregator) Report(ctx context.Context, req Request) (*models.MergedAttestation, error) {
	model, err := a.aliases.Resolve(ctx, req.Model)
	if err != nil {
		return nil, utils.Internal("Failed to resolve model alias", err)
	}

	replicas, err := a.replicas.ListInternalModelParams(ctx, model)
	if errors.Is(err, storage.ErrModelNotFound) {
		return nil, utils.BadRequest("Invalid model")
	}
	if err != nil {
		return nil, utils.Internal("Failed to resolve model", err)
	}

	nonce, err := ParseNonce(req.Nonce)
	if err != nil {
		return nil, err
	}

	if cached, ok := a.cache.Get(model); ok {
		a.metrics.RecordCacheLookup("attestation", true)
		return cached, nil
	}
	a.metrics.RecordCacheLookup("attestation", false)

	type gatewayResult struct {
		att *models.GatewayAttestation
		err error
	}
	gatewayCh := make(chan gatewayResult, 1)
	go func() {
		if !a.gateway.Enabled() {
			gatewayCh <- gatewayResult{}
			return
		}
		gctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		att, err := a.gateway.GatewayAttestation(gctx, nonce)
		gatewayCh <- gatewayResult{att: att, err: err}
	}()

	query := providers.AttestationQuery{
		Nonce:          nonce,
		SigningAlgo:    req.SigningAlgo,
		SigningAddress: req.SigningAddress,
	}
	tasks := make([]fanout.Task[*models.AttestationReport], len(replicas))
	for i, replica := range replicas {
		tasks[i] = func(ctx context.Context) (*models.AttestationReport, error) {
			return a.attester.AttestationReport(ctx, replica, query)
		}
	}
	results := fanout.All(ctx, a.timeout, tasks)

	for i, r := range results {
		if r.Err != nil {
			a.logger.Debug("failed to fetch attestation report",
				"model_id", replicas[i].ModelID,
				"error", r.Err)
		}
	}

	gw := <-gatewayCh
	if gw.err != nil {
		return nil, utils.Internal("Failed to generate gateway attestation", gw.err)
	}

	merged, ok := Merge(fanout.Successes(results))
	if !ok {
		a.notifier.Error(fmt.Sprintf("No attestation available for model %s: %v", model, fanout.Errors(results)))
		return nil, utils.Internal("No attestation available", fanout.Errors(results))
	}
	merged.GatewayAttestation = gw.att

	a.cache.Set(model, merged)
	return merged, nil
}

// Merge combines replica reports in order. The first report provides the
// top-level fields; AllAttestations lists every report flattened, so it
// never nests. ok is false when reports is empty.
func Merge(reports []*models.AttestationReport) (*models.MergedAttestation, bool) {
	if len(reports) == 0 {
		return nil, false
	}

	merged := &models.MergedAttestation{AttestationReport: *reports[0]}

	all := make([]models.AttestationReport, 0, len(reports))
	for _, r := range reports {
		all = append(all, r.Flatten()...)
	}
	merged.AllAttestations = all

	return merged, true
}
