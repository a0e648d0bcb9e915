package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/metrics"
)

// ErrReplicaUnavailable is returned without calling a replica whose breaker
// is open or saturated in half-open state.
var ErrReplicaUnavailable = errors.New("replica unavailable")

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before half-open
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	}
}

// BreakerRegistry keeps one circuit breaker per replica, keyed by model id.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   BreakerConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewBreakerRegistry creates a registry. m may be nil.
func NewBreakerRegistry(config BreakerConfig, m *metrics.Metrics) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
		metrics:  m,
		logger:   logging.For("breaker"),
	}
}

// Get returns (or creates) the breaker for name.
func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, exists := r.breakers[name]
	r.mu.RUnlock()

	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		IsSuccessful: isHealthyOutcome,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				"replica", name,
				"from", from.String(),
				"to", to.String())

			r.metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				r.metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}

	cb = gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[name] = cb
	return cb
}

// Unavailable returns the state of every breaker that is not closed, keyed
// by replica.
func (r *BreakerRegistry) Unavailable() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string)
	for name, cb := range r.breakers {
		if state := cb.State(); state != gobreaker.StateClosed {
			out[name] = state.String()
		}
	}
	return out
}

// isHealthyOutcome decides which errors count against a replica. A replica
// that answers 404 for an unknown chat id is healthy, and so is one whose
// call was cancelled because another replica won a race.
func isHealthyOutcome(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var re *ReplicaError
	return errors.As(err, &re) && re.Status == 404
}

// execute runs fn through the named breaker.
func execute[T any](ctx context.Context, r *BreakerRegistry, name string, fn func() (T, error)) (T, error) {
	var zero T

	result, err := r.Get(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %s: %v", ErrReplicaUnavailable, name, err)
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// stateToInt maps a breaker state for metrics: 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
