package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/think-in-universe/nearai-cloud-server/internal/attestation"
	"github.com/think-in-universe/nearai-cloud-server/internal/auth"
	"github.com/think-in-universe/nearai-cloud-server/internal/config"
	"github.com/think-in-universe/nearai-cloud-server/internal/httpapi"
	"github.com/think-in-universe/nearai-cloud-server/internal/litellm"
	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/notify"
	"github.com/think-in-universe/nearai-cloud-server/internal/providers"
	"github.com/think-in-universe/nearai-cloud-server/internal/queue"
	"github.com/think-in-universe/nearai-cloud-server/internal/signature"
	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
)

const (
	shutdownTimeout   = 30 * time.Second
	gaugeSchedule     = "@every 15s"
	deadLetterScanMax = 1000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := storage.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	enc, err := storage.NewEncryption(cfg.LiteLLM.SigningKey())
	if err != nil {
		return err
	}
	modelRepo := storage.NewModelRepository(db, enc)
	settings := storage.NewRouterSettingsRepository(db, cfg.Cache.RouterSettingsTTL)

	var overlay storage.AliasSource
	if cfg.ModelAliasFile != "" {
		aliasFile, err := config.NewAliasFile(cfg.ModelAliasFile, logging.For("aliases"))
		if err != nil {
			return err
		}
		go func() {
			if err := aliasFile.Watch(ctx); err != nil {
				logger.Error("model alias watcher stopped", "error", err)
			}
		}()
		overlay = aliasFile
	}
	aliases := storage.NewModelAliasResolver(settings, overlay)

	breakers := providers.NewBreakerRegistry(providers.BreakerConfig{
		MaxRequests: cfg.Backend.BreakerMaxRequests,
		Interval:    cfg.Backend.BreakerInterval,
		Timeout:     cfg.Backend.BreakerTimeout,
	}, m)
	replicas := providers.NewReplicaClient(breakers, m)
	dstack := providers.NewDstackClient(cfg.Dstack.Endpoint, cfg.Dstack.Timeout)
	slack := notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Tag, cfg.Env)
	defer slack.Wait()

	aggregator := attestation.NewAggregator(aliases, modelRepo, replicas, dstack, slack, attestation.Config{
		Timeout:   cfg.Backend.AttestationTimeout,
		CacheTTL:  cfg.Cache.AttestationTTL,
		CacheSize: cfg.Cache.AttestationSize,
	}, m)

	queueCfg := queue.Config{
		Name:         cfg.Queue.Name,
		BatchSize:    cfg.Queue.BatchSize,
		BatchTimeout: cfg.Queue.BatchTimeout,
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryBackoff: cfg.Queue.RetryBackoff,
	}
	var (
		sigQueue queue.Queue[models.SignatureRecord]
		sigDLQ   queue.DeadLetterQueue[models.SignatureRecord]
	)
	if cfg.Queue.UseRedis {
		sigQueue = queue.NewRedisQueue[models.SignatureRecord](redisClient.Client(), queueCfg)
		sigDLQ = queue.NewRedisDeadLetterQueue[models.SignatureRecord](redisClient.Client(), queueCfg)
	} else {
		sigQueue = queue.NewMemoryQueue[models.SignatureRecord](queueCfg)
		sigDLQ = queue.NewMemoryDeadLetterQueue[models.SignatureRecord]()
	}
	defer sigDLQ.Close()
	defer sigQueue.Close()

	worker := storage.NewSignatureQueueWorker(sigQueue, sigDLQ, storage.NewSignatureRepository(db), queueCfg)
	worker.Start(ctx)
	defer worker.Stop()

	chatIndex := storage.NewRedisChatIndex(redisClient.Client(), cfg.Cache.ChatIndexTTL)
	resolver := signature.NewResolver(aliases, modelRepo, storage.NewSignatureRepository(db), chatIndex, replicas, worker, cfg.Backend.SignatureTimeout, m)

	masterClient := litellm.NewClient(cfg.LiteLLM.APIURL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
	// Streams may outlive any fixed client timeout; the request context bounds them.
	chatClient := litellm.NewClient(cfg.LiteLLM.APIURL, cfg.LiteLLM.MasterKey, 0)

	authorizer := auth.NewAuthorizer(
		auth.NewIdentityProvider(cfg.Supabase),
		masterClient,
		auth.LiteLLMKeys{Client: masterClient},
		cfg.LiteLLM.MasterKey,
	)

	server := httpapi.NewServer(httpapi.Dependencies{
		LiteLLM:       masterClient,
		Chat:          chatClient,
		Models:        modelRepo,
		Attestations:  aggregator,
		Signatures:    resolver,
		ChatIndex:     chatIndex,
		Auth:          middleware.NewAuth(authorizer, cfg.IsDevelopment()),
		Metrics:       m,
		ModelListTTL:  cfg.Cache.ModelListTTL,
		ModelListSize: cfg.Cache.ModelListSize,
		IsDevelopment: cfg.IsDevelopment(),
		Breakers:      breakers,
		DeadLetters:   worker,
		HealthChecks: map[string]httpapi.HealthChecker{
			"database": db,
			"redis":    redisClient,
		},
	})

	sweeper := storage.NewSweeper(cfg.Cache.SweepSchedule)
	sweeper.Register("attestation", aggregator.Cache())
	sweeper.Register("router_settings", settings.Cache())
	sweeper.Register("model_list", server.ModelListCache())
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	gauges := cron.New()
	if _, err := gauges.AddFunc(gaugeSchedule, func() { refreshGauges(ctx, worker, sweeper, m) }); err != nil {
		return fmt.Errorf("invalid gauge schedule: %w", err)
	}
	gauges.Start()
	defer gauges.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", "error", err)
	}
	return nil
}

func refreshGauges(ctx context.Context, worker *storage.SignatureQueueWorker, sweeper *storage.Sweeper, m *metrics.Metrics) {
	for name, stats := range sweeper.Stats() {
		m.SetCacheEntries(name, stats.Size)
	}

	length, err := worker.QueueLength(ctx)
	if err != nil {
		return
	}
	dead, err := worker.DeadLetterItems(ctx, deadLetterScanMax)
	if err != nil {
		return
	}
	m.SetSignatureQueue(length, len(dead))
}
