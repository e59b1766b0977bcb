package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loc-core/loc/internal/task"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      100 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0,
	}
}

func TestDispatchSucceedsOnFirstTry(t *testing.T) {
	var calls int32
	w := New(func(ctx context.Context, agentID string, tk *task.Task) (*task.Result, error) {
		atomic.AddInt32(&calls, 1)
		return &task.Result{ConfidenceScore: 0.9}, nil
	}, fastRetryConfig())

	result, err := w.Dispatch(context.Background(), "agent-1", &task.Task{ID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.ConfidenceScore != 0.9 {
		t.Fatalf("unexpected result %+v", result)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one dispatch call, got %d", calls)
	}
}

func TestDispatchRetriesTransientFailureThenSucceeds(t *testing.T) {
	var calls int32
	w := New(func(ctx context.Context, agentID string, tk *task.Task) (*task.Result, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("transient timeout")
		}
		return &task.Result{ConfidenceScore: 0.8}, nil
	}, fastRetryConfig())

	result, err := w.Dispatch(context.Background(), "agent-1", &task.Task{ID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result once the dispatch eventually succeeds")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDispatchPermanentFailureExhaustsElapsedTime(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxElapsedTime = 5 * time.Millisecond // stops after 3 attempts, before the breaker's 5-failure trip
	w := New(func(ctx context.Context, agentID string, tk *task.Task) (*task.Result, error) {
		return nil, errors.New("endpoint down")
	}, cfg)

	_, err := w.Dispatch(context.Background(), "agent-1", &task.Task{ID: "t1"})
	if err == nil {
		t.Fatal("expected an error once MaxElapsedTime is exceeded")
	}
}

func TestDispatchCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(func(ctx context.Context, agentID string, tk *task.Task) (*task.Result, error) {
		return nil, errors.New("should not matter, context is already cancelled")
	}, fastRetryConfig())

	_, err := w.Dispatch(ctx, "agent-1", &task.Task{ID: "t1"})
	if err == nil {
		t.Fatal("expected an error when the context is already cancelled")
	}
}

func TestBreakerOpensAfterConsecutiveFailuresAndExcludesAgent(t *testing.T) {
	w := New(func(ctx context.Context, agentID string, tk *task.Task) (*task.Result, error) {
		return nil, errors.New("persistent failure")
	}, RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         time.Millisecond,
		MaxElapsedTime:      2 * time.Millisecond, // fail fast, no internal retry masking the breaker trips
		Multiplier:          2,
		RandomizationFactor: 0,
	})

	for i := 0; i < 6; i++ {
		_, _ = w.Dispatch(context.Background(), "flaky-agent", &task.Task{ID: "t1"})
	}

	if !w.Breakers().Open("flaky-agent") {
		t.Error("expected the circuit breaker to be open after repeated consecutive failures")
	}
	if w.Breakers().Open("never-called-agent") {
		t.Error("expected an untouched agent's breaker to report closed")
	}
}
