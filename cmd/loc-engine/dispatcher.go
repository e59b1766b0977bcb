package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/loc-core/loc/internal/task"
)

// demoDispatcher is a minimal in-memory Dispatcher for local exploration
// and smoke-testing: it simulates latency proportional to task complexity
// and a confidence score centered on the agent's declared skill for the
// task's domain, grounded on the shape of the teacher's Backend interface
// (Send(ctx, msg) (Response, error)) rather than on its subprocess
// implementation — LOC's Dispatcher never shells out (§1 "Out of scope").
type demoDispatcher struct {
	rng    *rand.Rand
	skills func(agentID, domain string) float64
}

func newDemoDispatcher(skills func(agentID, domain string) float64) *demoDispatcher {
	return &demoDispatcher{rng: rand.New(rand.NewSource(1)), skills: skills}
}

// Dispatch implements scheduler.Dispatcher (and loc.Dispatcher).
func (d *demoDispatcher) Dispatch(ctx context.Context, agentID string, t *task.Task) (*task.Result, error) {
	latency := time.Duration(50+t.Complexity*20) * time.Millisecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	skill := d.skills(agentID, t.Domain)
	confidence := clamp01(skill/10.0 + (d.rng.Float64()-0.5)*0.2)

	// A small, fixed failure chance models a flaky remote endpoint so the
	// resilience wrapper's retry/circuit-breaker path actually exercises.
	if d.rng.Float64() < 0.05 {
		return nil, fmt.Errorf("agent %s: endpoint timeout", agentID)
	}

	return &task.Result{
		ResultData:      fmt.Sprintf("agent %s completed %q", agentID, t.Description),
		ConfidenceScore: confidence,
		ActualImpact:    float64(t.Complexity) * confidence,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
