// Package fanout runs one call per replica concurrently and combines the
// outcomes, either waiting for every call or stopping at the first success.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoTasks is returned by FirstSuccess when given nothing to run.
var ErrNoTasks = errors.New("fanout: no tasks")

// Task is one call in a fan-out.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of one task, at the task's index.
type Result[T any] struct {
	Value T
	Err   error
}

// All runs every task concurrently and waits for all of them. Each task gets
// its own timeout when timeout > 0. Failures are reported per task, never
// cancelling the others.
func All[T any](ctx context.Context, timeout time.Duration, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			taskCtx, cancel := withTimeout(ctx, timeout)
			defer cancel()

			v, err := task(taskCtx)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FirstSuccess runs every task concurrently and returns the first value
// produced without error, cancelling the tasks still running. When every
// task fails the errors are joined in task order.
func FirstSuccess[T any](ctx context.Context, timeout time.Duration, tasks []Task[T]) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, ErrNoTasks
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		once   sync.Once
		winner T
		won    bool
		errs   = make([]error, len(tasks))
	)

	for i, task := range tasks {
		g.Go(func() error {
			taskCtx, cancel := withTimeout(gctx, timeout)
			defer cancel()

			v, err := task(taskCtx)
			if err != nil {
				errs[i] = fmt.Errorf("task %d: %w", i, err)
				return nil
			}
			once.Do(func() {
				winner = v
				won = true
			})
			// A non-nil return cancels gctx, which stops the other tasks.
			return errWon
		})
	}
	_ = g.Wait()

	if won {
		return winner, nil
	}
	return zero, errors.Join(errs...)
}

var errWon = errors.New("fanout: won")

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// Successes returns the values of the successful results, in task order.
func Successes[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors joins the failures of results, or returns nil when there are none.
func Errors[T any](results []Result[T]) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
