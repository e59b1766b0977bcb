// Package resilience wraps a Dispatcher call with exponential backoff
// retry and a per-agent circuit breaker, kept separate from the
// scheduler's own retryCount/failedAgents bookkeeping (§4.9): this layer
// absorbs transient dispatch failures (timeouts, connection resets)
// before the scheduler ever sees them as a task failure, grounded on the
// teacher's internal/orchestrator/resilience.go.
package resilience

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/loc-core/loc/internal/task"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig mirrors the teacher's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// DispatchFunc is the external dispatch capability a Wrapper protects. It
// matches the scheduler's Dispatcher.Dispatch signature without importing
// the scheduler package.
type DispatchFunc func(ctx context.Context, agentID string, t *task.Task) (*task.Result, error)

// BreakerRegistry manages one circuit breaker per agent, so one
// persistently failing agent trips independently of the rest of the
// fleet.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// Get returns the circuit breaker for agentID, creating one on first use.
func (r *BreakerRegistry) Get(agentID string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[agentID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        agentID,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})
	r.breakers[agentID] = cb
	return cb
}

// Open reports whether agentID's breaker is currently open, used by the
// scheduler to exclude an agent from EvaluateAssignment candidates without
// waiting for a dispatch attempt to fail.
func (r *BreakerRegistry) Open(agentID string) bool {
	r.mu.Lock()
	cb, ok := r.breakers[agentID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return cb.State() == gobreaker.StateOpen
}

// Wrapper dispatches through a per-agent circuit breaker with exponential
// backoff retry around transient failures.
type Wrapper struct {
	dispatch  DispatchFunc
	breakers  *BreakerRegistry
	retryCfg  RetryConfig
}

// New constructs a Wrapper around dispatch using cfg for retry tuning.
func New(dispatch DispatchFunc, cfg RetryConfig) *Wrapper {
	return &Wrapper{dispatch: dispatch, breakers: NewBreakerRegistry(), retryCfg: cfg}
}

// Breakers exposes the underlying registry so the scheduler can consult
// Open(agentID) when ranking candidates.
func (w *Wrapper) Breakers() *BreakerRegistry {
	return w.breakers
}

// Dispatch sends t to agentID through that agent's circuit breaker,
// retrying transient errors with exponential backoff until MaxElapsedTime
// or ctx cancellation.
func (w *Wrapper) Dispatch(ctx context.Context, agentID string, t *task.Task) (*task.Result, error) {
	cb := w.breakers.Get(agentID)
	var result *task.Result

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := cb.Execute(func() (interface{}, error) {
			return w.dispatch(ctx, agentID, t)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result, _ = out.(*task.Result)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.retryCfg.InitialInterval
	policy.MaxInterval = w.retryCfg.MaxInterval
	policy.MaxElapsedTime = w.retryCfg.MaxElapsedTime
	policy.Multiplier = w.retryCfg.Multiplier
	policy.RandomizationFactor = w.retryCfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return result, err
}
