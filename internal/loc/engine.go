// Package loc wires every component into one running engine: AgentRegistry,
// TaskStore, DependencyGraph sweeps, ResourceArbiter, Compatibility Scorer,
// Meta-Reflection, Collaboration Bus, SubtaskAggregator, the Scheduler tick
// loop, and an optional SQLite Performance Store — constructed and torn
// down in the order grounded on the teacher's cmd/orchestrator/main.go
// (aristath-orchestrator).
package loc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/aggregator"
	"github.com/loc-core/loc/internal/collab"
	"github.com/loc-core/loc/internal/config"
	"github.com/loc-core/loc/internal/events"
	"github.com/loc-core/loc/internal/persistence"
	"github.com/loc-core/loc/internal/reflection"
	"github.com/loc-core/loc/internal/resilience"
	"github.com/loc-core/loc/internal/resource"
	"github.com/loc-core/loc/internal/scheduler"
	"github.com/loc-core/loc/internal/task"
)

// Dispatcher is the external dispatch capability an Engine drives. It is
// the same contract as scheduler.Dispatcher, re-exported so callers never
// need to import internal/scheduler directly.
type Dispatcher = scheduler.Dispatcher

// Engine is one fully wired instance of the orchestration system.
type Engine struct {
	cfg *config.Config

	Tasks     *task.Store
	Agents    *agent.Registry
	Resources *resource.Arbiter
	Collab    *collab.Bus
	Events    *events.Bus

	reflector  *reflection.Reflector
	scheduler  *scheduler.Scheduler
	aggregator *aggregator.Aggregator
	perfStore  *persistence.Store

	cancel  context.CancelFunc
	runDone chan error
}

// New constructs an Engine from cfg and dispatcher. If cfg.Persistence is
// enabled, a SQLite Performance Store is opened and wired as both the
// registry's seeder and the scheduler's learning-snapshot sink.
func New(ctx context.Context, cfg *config.Config, dispatcher Dispatcher) (*Engine, error) {
	var perfStore *persistence.Store
	if cfg.Persistence.Enabled {
		store, err := persistence.NewSQLiteStore(ctx, cfg.Persistence.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening performance store: %w", err)
		}
		perfStore = store
	}

	validator := cfg.DomainValidator()
	taskStore := task.New(validator)

	var seeder agent.Seeder
	if perfStore != nil {
		seeder = perfStore
	}
	registry := agent.New(validator, seeder)

	arbiter := resource.New()
	for id, rc := range cfg.Resources {
		mode := resource.Parallel
		if rc.Mode == "exclusive" {
			mode = resource.Exclusive
		}
		arbiter.Register(id, mode, rc.Capacity)
	}

	bus := events.New()
	collabBus := collab.New()
	reflector := reflection.New(registry, taskStore)

	wrapper := resilience.New(
		func(ctx context.Context, agentID string, t *task.Task) (*task.Result, error) {
			return dispatcher.Dispatch(ctx, agentID, t)
		},
		resilience.RetryConfig{
			InitialInterval:     time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond,
			MaxInterval:         time.Duration(cfg.Retry.MaxIntervalMS) * time.Millisecond,
			MaxElapsedTime:      time.Duration(cfg.Retry.MaxElapsedTimeMS) * time.Millisecond,
			Multiplier:          cfg.Retry.Multiplier,
			RandomizationFactor: cfg.Retry.RandomizationFactor,
		},
	)

	schedCfg := scheduler.Config{
		TickInterval:           time.Duration(cfg.Scheduler.TickIntervalMS) * time.Millisecond,
		ConcurrencyLimit:       cfg.Scheduler.ConcurrencyLimit,
		MaxRetries:             cfg.Scheduler.MaxRetries,
		LowConfidenceThreshold: cfg.Scheduler.LowConfidenceThreshold,
		MinResultConfidence:    cfg.Scheduler.MinResultConfidence,
		DispatchTimeout:        time.Duration(cfg.Scheduler.DispatchTimeoutMS) * time.Millisecond,
	}
	sched := scheduler.New(schedCfg, taskStore, registry, arbiter, reflector, wrapper, bus, collabBus)

	agg := aggregator.New(taskStore, bus, collabBus)
	sched.SetAggregator(agg)

	if perfStore != nil {
		sched.SetPersistFunc(perfStore.PersistFunc())
	}

	return &Engine{
		cfg:        cfg,
		Tasks:      taskStore,
		Agents:     registry,
		Resources:  arbiter,
		Collab:     collabBus,
		Events:     bus,
		reflector:  reflector,
		scheduler:  sched,
		aggregator: agg,
		perfStore:  perfStore,
	}, nil
}

// Submit accepts a new top-level task, publishing a submission event on
// success.
func (e *Engine) Submit(spec task.Spec) (string, error) {
	id, err := e.Tasks.Submit(spec)
	if err != nil {
		return "", err
	}
	e.Events.Publish(events.TopicTask, events.TaskSubmittedEvent{ID: id, Domain: spec.DomainLabel, Timestamp: time.Now()})
	return id, nil
}

// InjectSubtask decomposes parentID into one more sub-task.
func (e *Engine) InjectSubtask(parentID string, spec task.Spec) (string, error) {
	id, err := e.Tasks.InjectSubtask(parentID, spec)
	if err != nil {
		return "", err
	}
	e.Events.Publish(events.TopicTask, events.TaskSubmittedEvent{ID: id, Domain: spec.DomainLabel, Timestamp: time.Now()})
	return id, nil
}

// RegisterAgent admits a new agent into the pool, publishing a
// registration event on success.
func (e *Engine) RegisterAgent(d agent.Descriptor) (string, error) {
	id, err := e.Agents.Register(d)
	if err != nil {
		return "", err
	}
	e.Events.Publish(events.TopicAgent, events.AgentRegisteredEvent{ID: id, Domains: d.DomainLabels, Timestamp: time.Now()})
	return id, nil
}

// Start launches the scheduler's tick loop in the background. Start
// returns immediately; use Stop or cancel ctx to shut down.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runDone = make(chan error, 1)
	go func() {
		e.runDone <- e.scheduler.Run(runCtx)
	}()
}

// Stop cancels the tick loop and waits (up to timeout) for it to exit,
// then closes the event bus and performance store, mirroring the
// teacher's shutdown sequence (stop scheduling, drain, close resources).
func (e *Engine) Stop(timeout time.Duration) error {
	if e.cancel != nil {
		e.cancel()
	}

	var runErr error
	if e.runDone != nil {
		select {
		case runErr = <-e.runDone:
			if errors.Is(runErr, context.Canceled) {
				runErr = nil // the cancellation Stop itself requested
			}
		case <-time.After(timeout):
			runErr = fmt.Errorf("scheduler did not stop within %s", timeout)
		}
	}

	e.Events.Close()

	if e.perfStore != nil {
		if err := e.perfStore.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Tick runs one scheduling pass synchronously, for tests and CLI
// single-step drivers that prefer not to start the background loop.
func (e *Engine) Tick(ctx context.Context) {
	e.scheduler.Tick(ctx)
}
