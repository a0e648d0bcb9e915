// Package queue buffers work that must not block a request, such as
// persisting signatures fetched from a replica. Two backends exist: a
// channel-backed MemoryQueue for single-instance deployments and a
// Redis list for deployments that share a queue across instances.
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of T.
type Queue[T any] interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item T) error

	// Dequeue blocks until at least one item is available, then returns up
	// to maxItems.
	Dequeue(ctx context.Context, maxItems int) ([]T, error)

	// DequeueWithTimeout is Dequeue that gives up after timeout and returns
	// an empty slice.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue holds items whose processing failed for good.
type DeadLetterQueue[T any] interface {
	Add(ctx context.Context, item T, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem[T any] struct {
	ID        string    `json:"id"`
	Item      T         `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds queue configuration
type Config struct {
	// Name keys the Redis list and dead letter hash.
	Name string

	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per item
	MaxRetries int

	// RetryBackoff is the initial backoff; it doubles per attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns default queue configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		BatchSize:    50,
		BatchTimeout: 2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
	}
}
