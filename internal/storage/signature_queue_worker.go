package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/queue"
)

// SignatureWriter persists signature records.
type SignatureWriter interface {
	Create(ctx context.Context, rec *models.SignatureRecord) error
	CreateBatch(ctx context.Context, recs []*models.SignatureRecord) error
}

// drainTimeout bounds how long Stop spends persisting what is still queued.
const drainTimeout = 5 * time.Second

// SignatureQueueWorker persists signatures off the request path. Callers
// enqueue and return immediately; failures are logged here and never reach
// the caller.
type SignatureQueueWorker struct {
	queue       queue.Queue[models.SignatureRecord]
	dlq         queue.DeadLetterQueue[models.SignatureRecord]
	writer      SignatureWriter
	config      queue.Config
	logger      *slog.Logger
	sleep       func(time.Duration)
	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewSignatureQueueWorker creates a worker. dlq may be nil.
func NewSignatureQueueWorker(
	q queue.Queue[models.SignatureRecord],
	dlq queue.DeadLetterQueue[models.SignatureRecord],
	writer SignatureWriter,
	config queue.Config,
) *SignatureQueueWorker {
	return &SignatureQueueWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      logging.For("signature-worker"),
		sleep:       time.Sleep,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *SignatureQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop waits for the in-flight batch, then persists whatever is still
// queued. The start context is usually cancelled by now, so draining runs
// on its own deadline.
func (w *SignatureQueueWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.stoppedChan

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	w.drain(ctx)
}

func (w *SignatureQueueWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			break
		}
		if n > w.config.BatchSize && w.config.BatchSize > 0 {
			n = w.config.BatchSize
		}
		items, err := w.queue.Dequeue(ctx, n)
		if err != nil {
			w.logger.Warn("failed to drain signature queue", "error", err)
			break
		}
		w.persist(ctx, items)
		drained += len(items)
	}
	if drained > 0 {
		w.logger.Info("drained signature queue", "count", drained)
	}
}

// Enqueue schedules rec for persistence. It never blocks the caller on the
// database and never returns an error; a full or closed queue is logged.
func (w *SignatureQueueWorker) Enqueue(ctx context.Context, rec models.SignatureRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := w.queue.Enqueue(ctx, rec); err != nil {
		w.logger.Error("failed to enqueue signature",
			"chat_id", rec.ChatID,
			"model_id", rec.ModelID,
			"error", err,
		)
	}
}

func (w *SignatureQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("signature worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("signature worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *SignatureQueueWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
			w.sleep(w.config.BatchTimeout)
			return
		}
		w.logger.Error("failed to dequeue signatures", "error", err)
		w.sleep(time.Second)
		return
	}

	w.persist(ctx, items)
}

func (w *SignatureQueueWorker) persist(ctx context.Context, items []models.SignatureRecord) {
	if len(items) == 0 {
		return
	}

	recs := make([]*models.SignatureRecord, len(items))
	for i := range items {
		recs[i] = &items[i]
	}

	w.logger.Debug("persisting signature batch", "count", len(recs))

	if err := w.writer.CreateBatch(ctx, recs); err != nil {
		w.logger.Error("failed to insert signature batch, retrying individually", "error", err)
		for _, rec := range recs {
			if err := w.processItem(ctx, rec); err != nil {
				w.logger.Error("failed to persist signature", "chat_id", rec.ChatID, "error", err)
			}
		}
	}
}

func (w *SignatureQueueWorker) processItem(ctx context.Context, rec *models.SignatureRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("retrying signature", "attempt", attempt, "backoff", backoff)
			w.sleep(backoff)
		}

		if err := w.writer.Create(ctx, rec); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, *rec, lastErr); err != nil {
			w.logger.Error("failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("signature moved to DLQ", "chat_id", rec.ChatID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// QueueLength returns the number of signatures waiting to be written.
func (w *SignatureQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems lists signatures that could not be written.
func (w *SignatureQueueWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[models.SignatureRecord], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem moves a dead letter back onto the queue.
func (w *SignatureQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
