package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value[T any](v T, delay time.Duration) Task[T] {
	return func(ctx context.Context) (T, error) {
		select {
		case <-time.After(delay):
			return v, nil
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func failure[T any](err error) Task[T] {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

func TestAllKeepsOrderAndPartialFailures(t *testing.T) {
	boom := errors.New("boom")
	results := All(context.Background(), 50*time.Millisecond, []Task[string]{
		value("r1", 20*time.Millisecond),
		value("r2", time.Hour),
		value("r3", 0),
		failure[string](boom),
	})

	require.Len(t, results, 4)
	assert.Equal(t, "r1", results[0].Value)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
	assert.Equal(t, "r3", results[2].Value)
	assert.ErrorIs(t, results[3].Err, boom)

	assert.Equal(t, []string{"r1", "r3"}, Successes(results))
	assert.ErrorIs(t, Errors(results), boom)
	assert.ErrorIs(t, Errors(results), context.DeadlineExceeded)
}

func TestAllEmpty(t *testing.T) {
	results := All[int](context.Background(), time.Second, nil)
	assert.Empty(t, results)
	assert.Empty(t, Successes(results))
	assert.NoError(t, Errors(results))
}

func TestFirstSuccessReturnsFastest(t *testing.T) {
	var cancelled atomic.Int32
	slow := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		cancelled.Add(1)
		return "", ctx.Err()
	}

	start := time.Now()
	got, err := FirstSuccess(context.Background(), 0, []Task[string]{
		slow,
		failure[string](errors.New("not found")),
		value("winner", 10*time.Millisecond),
		slow,
	})
	require.NoError(t, err)
	assert.Equal(t, "winner", got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), cancelled.Load())
}

func TestFirstSuccessJoinsErrors(t *testing.T) {
	errA := errors.New("replica a: not found")
	errB := errors.New("replica b: not found")

	_, err := FirstSuccess(context.Background(), 20*time.Millisecond, []Task[int]{
		failure[int](errA),
		failure[int](errB),
		value(3, time.Hour),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "task 1")
}

func TestFirstSuccessNoTasks(t *testing.T) {
	_, err := FirstSuccess[int](context.Background(), time.Second, nil)
	assert.ErrorIs(t, err, ErrNoTasks)
}

func TestFirstSuccessParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FirstSuccess(ctx, time.Second, []Task[int]{value(1, time.Hour)})
	assert.ErrorIs(t, err, context.Canceled)
}
