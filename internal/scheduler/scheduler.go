// Package scheduler runs the engine's tick loop: cycle sweep, ready-queue
// pick, meta-reflective evaluation, remediation, resource acquisition, and
// bounded concurrent dispatch, grounded on the teacher's
// internal/scheduler/dag.go (eligibility + cycle handling) and
// internal/orchestrator/runner.go (wave-based errgroup dispatch), both
// from aristath-orchestrator.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/collab"
	"github.com/loc-core/loc/internal/depgraph"
	"github.com/loc-core/loc/internal/events"
	"github.com/loc-core/loc/internal/reflection"
	"github.com/loc-core/loc/internal/resilience"
	"github.com/loc-core/loc/internal/resource"
	"github.com/loc-core/loc/internal/task"
)

// Dispatcher is the external dispatch capability the scheduler drives. An
// engine is always constructed with a concrete Dispatcher; the scheduler
// itself never knows how an agent is actually reached (HTTP, CLI, message
// queue — whatever the Descriptor's APIEndpoint names).
type Dispatcher interface {
	Dispatch(ctx context.Context, agentID string, t *task.Task) (*task.Result, error)
}

// Aggregator is notified whenever a task completes or fails, so it can
// check sibling completeness and compose parent results. Implemented by
// the aggregator package; kept as an interface here to avoid a scheduler
// <-> aggregator import cycle.
type Aggregator interface {
	OnChildSettled(childID string)
}

// Config tunes the tick loop.
type Config struct {
	TickInterval           time.Duration
	ConcurrencyLimit       int
	MaxRetries             int
	LowConfidenceThreshold float64 // §4.6 step 4: predicted success below this triggers remediation
	MinResultConfidence    float64 // §4.6 step 7: a settled result below this is a reassignment, not a commit
	DispatchTimeout        time.Duration
}

// DefaultConfig returns reasonable defaults grounded on the teacher's
// ParallelRunnerConfig defaults (ConcurrencyLimit 4), with the two
// confidence thresholds set to the literal values §4.6 names.
func DefaultConfig() Config {
	return Config{
		TickInterval:           time.Second,
		ConcurrencyLimit:       4,
		MaxRetries:             3,
		LowConfidenceThreshold: 0.65,
		MinResultConfidence:    0.6,
		DispatchTimeout:        2 * time.Minute,
	}
}

// Scheduler owns the tick loop for a single engine instance.
type Scheduler struct {
	cfg        Config
	store      *task.Store
	registry   *agent.Registry
	arbiter    *resource.Arbiter
	reflector  *reflection.Reflector
	resilience *resilience.Wrapper
	bus        *events.Bus
	collab     *collab.Bus
	aggregator Aggregator
	persist    reflection.PersistFunc

	mu sync.Mutex // serializes pick + mark-busy + reserve across a tick's goroutines
}

// New wires a Scheduler from its collaborators. aggregator may be nil
// until the engine has constructed it (see SetAggregator). collabBus may be
// nil, in which case collaborative tasks settle without posting to the
// Collaboration Bus.
func New(cfg Config, store *task.Store, registry *agent.Registry, arbiter *resource.Arbiter, reflector *reflection.Reflector, wrapper *resilience.Wrapper, bus *events.Bus, collabBus *collab.Bus) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		arbiter:    arbiter,
		reflector:  reflector,
		resilience: wrapper,
		bus:        bus,
		collab:     collabBus,
	}
}

// SetAggregator attaches the sub-task aggregator. Must be called before
// Run if the engine submits any sub-tasks.
func (s *Scheduler) SetAggregator(a Aggregator) {
	s.aggregator = a
}

// SetPersistFunc attaches the Performance Store's snapshot writer, called
// after every learning update. Optional: a nil persist func leaves
// learning purely in-memory for the process lifetime.
func (s *Scheduler) SetPersistFunc(persist reflection.PersistFunc) {
	s.persist = persist
}

// Run blocks, ticking the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Tick runs one scheduling pass synchronously; exported for tests and for
// callers that prefer to drive the loop manually rather than via Run.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	s.sweepCycles()
	s.publishDiagnosticOrder()

	ready := s.store.ReadyQueueSnapshot()
	if len(ready) == 0 {
		return
	}

	// Dispatches already started are not cancelled along with ctx: stopping
	// the loop lets them run to completion and settle.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(s.cfg.ConcurrencyLimit)

	for _, t := range ready {
		t := t
		g.Go(func() error {
			s.evaluateAndDispatch(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

// sweepCycles fails every task participating in a dependency cycle and
// cascades the failure to their dependents, per §4.3/§4.9.
func (s *Scheduler) sweepCycles() {
	cyclic := depgraph.DetectCycles(s.store)
	if len(cyclic) == 0 {
		return
	}

	failedSet := make(map[string]bool, len(cyclic))
	for _, id := range cyclic {
		failedSet[id] = true
		_ = s.store.Mutate(id, func(t *task.Task) {
			t.Status = task.StatusFailed
			t.FailureReason = task.ReasonCyclicDependency
		})
	}
	s.bus.Publish(events.TopicTask, events.TaskCycleFailedEvent{IDs: cyclic, Timestamp: time.Now()})

	s.cascadeFailures(failedSet)
}

// cascadeFailures transitively fails every pending task whose dependency
// chain includes a member of failedSet, per §4.9's cascade rule.
func (s *Scheduler) cascadeFailures(failedSet map[string]bool) {
	for {
		dependents := depgraph.DependentsOf(s.store.All(), failedSet)
		var newly []string
		for _, id := range dependents {
			if failedSet[id] {
				continue
			}
			t, ok := s.store.Get(id)
			if !ok || t.Status == task.StatusCompleted || t.Status == task.StatusFailed {
				continue
			}
			_ = s.store.Mutate(id, func(t *task.Task) {
				t.Status = task.StatusFailed
				t.FailureReason = task.ReasonDependencyCascade
			})
			s.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: id, Reason: string(task.ReasonDependencyCascade), Timestamp: time.Now()})
			if s.aggregator != nil {
				s.aggregator.OnChildSettled(id)
			}
			failedSet[id] = true
			newly = append(newly, id)
		}
		if len(newly) == 0 {
			return
		}
	}
}

// publishDiagnosticOrder recomputes and publishes a topological ordering of
// the pending subgraph for the Status Console's dependency view (§4.3). It
// runs after sweepCycles, so it sees the store with this tick's cycle
// participants already failed. If DiagnosticOrder still reports an error,
// nothing is published this tick and the console keeps its last ordering.
func (s *Scheduler) publishDiagnosticOrder() {
	order, err := depgraph.DiagnosticOrder(s.store)
	if err != nil {
		return
	}
	s.bus.Publish(events.TopicSystem, events.DiagnosticOrderEvent{Order: order, Timestamp: time.Now()})
}

// failInvalidTask fails taskID as INVALID_TASK on first scheduler
// inspection (§7's toxic-task rule) and cascades to its dependents, the
// same as any other terminal failure.
func (s *Scheduler) failInvalidTask(taskID string) {
	_ = s.store.Mutate(taskID, func(t *task.Task) {
		t.Status = task.StatusFailed
		t.FailureReason = task.ReasonInvalidTask
	})
	s.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: taskID, Reason: string(task.ReasonInvalidTask), Timestamp: time.Now()})
	if s.aggregator != nil {
		s.aggregator.OnChildSettled(taskID)
	}
	s.cascadeFailures(map[string]bool{taskID: true})
}

// evaluateAndDispatch evaluates one ready task against the agent pool and,
// if it clears the confidence threshold and acquires its resources,
// dispatches it.
func (s *Scheduler) evaluateAndDispatch(ctx context.Context, t *task.Task) {
	// Everything up to the dispatch runs under s.mu so two goroutines of the
	// same tick cannot claim the same idle agent.
	s.mu.Lock()
	locked := true
	defer func() {
		if locked {
			s.mu.Unlock()
		}
	}()

	if !s.store.Valid(t) {
		s.failInvalidTask(t.ID)
		return
	}

	exclude := s.excludedAgents(t)

	best, predicted := s.reflector.EvaluateAssignment(t, exclude)
	if best == nil {
		return // no eligible agent this tick; retried next tick
	}

	if predicted < s.cfg.LowConfidenceThreshold {
		remediation := s.reflector.SuggestRemediation(t)
		s.bus.Publish(events.TopicTask, events.TaskRemediatedEvent{ID: t.ID, Remediation: remediation.String(), Timestamp: time.Now()})

		switch remediation {
		case reflection.RemediationCollaborate:
			newPriority := t.Priority + 2
			if newPriority > 10 {
				newPriority = 10
			}
			_ = s.store.Mutate(t.ID, func(t *task.Task) {
				t.Collaborative = true
				t.Priority = newPriority
				t.SuggestedAction = "USE_COLLABORATION_PROTOCOL"
			})
			// fall through to dispatch with the same best agent, now flagged collaborative
		case reflection.RemediationSplit:
			s.splitTask(t)
			return // parent is now waiting_for_subtasks; its children enter the ready queue on their own
		case reflection.RemediationReroute:
			// Leave the task pending and retry next tick (§4.6 step 4):
			// dispatching to a different idle agent within the same tick
			// would contradict "waits for agent state change" — the next
			// tick re-evaluates against whatever the pool looks like then.
			return
		}
	}

	if !s.arbiter.TryAcquire(t.ID, t.ResourceRequirements) {
		s.bus.Publish(events.TopicResource, events.ResourceContentionEvent{TaskID_: t.ID, Timestamp: time.Now()})
		return
	}

	if err := s.registry.MarkBusy(best.ID); err != nil {
		s.arbiter.Release(t.ID)
		return
	}

	predictedImpact := s.reflector.PredictImpact(t)
	_ = s.store.Mutate(t.ID, func(t *task.Task) {
		t.Status = task.StatusProcessing
		t.AssignedTo = best.ID
		t.PredictedSuccess = predicted
		t.PredictedImpact = predictedImpact
	})
	s.bus.Publish(events.TopicTask, events.TaskAssignedEvent{ID: t.ID, AgentID: best.ID, PredictedSuccess: predicted, Timestamp: time.Now()})
	s.bus.Publish(events.TopicAgent, events.AgentStatusChangedEvent{ID: best.ID, Status: agent.StatusBusy.String(), Timestamp: time.Now()})

	locked = false
	s.mu.Unlock()
	s.dispatchOne(ctx, t.ID, best.ID)
}

// splitTask implements the SPLIT remediation (§4.6 step 4, §8 scenario
// S3): it marks t waiting_for_subtasks by injecting two children of half
// t's complexity (ceil/floor of complexity/2) at priorities prio+1 and
// prio, both clamped to the [0,10] ceiling per the open-question decision
// in SPEC_FULL §9(a)/(b). No cross-dependency between the two children is
// implied.
func (s *Scheduler) splitTask(t *task.Task) {
	half1 := (t.Complexity + 1) / 2 // ceil(c/2)
	half2 := t.Complexity / 2       // floor(c/2)
	if half2 < 1 {
		half2 = 1
	}

	bumped := t.Priority + 1
	if bumped > 10 {
		bumped = 10
	}

	children := []task.Spec{
		{
			Description:          fmt.Sprintf("%s (split 1/2)", t.Description),
			DomainLabel:          t.Domain,
			ComplexityScore:      half1,
			Priority:             bumped,
			InterferedBy:         append([]string(nil), t.InterferedBy...),
			ResourceRequirements: t.ResourceRequirements,
		},
		{
			Description:          fmt.Sprintf("%s (split 2/2)", t.Description),
			DomainLabel:          t.Domain,
			ComplexityScore:      half2,
			Priority:             t.Priority,
			InterferedBy:         append([]string(nil), t.InterferedBy...),
			ResourceRequirements: t.ResourceRequirements,
		},
	}

	for _, spec := range children {
		id, err := s.store.InjectSubtask(t.ID, spec)
		if err != nil {
			log.Printf("split: failed to inject subtask of task %q: %v", t.ID, err)
			continue
		}
		s.bus.Publish(events.TopicTask, events.TaskSubmittedEvent{ID: id, Domain: spec.DomainLabel, Timestamp: time.Now()})
	}
	_ = s.store.Mutate(t.ID, func(t *task.Task) { t.SuggestedAction = reflection.RemediationSplit.String() })
}

// excludedAgents merges the task's own failed-agent history with every
// agent whose circuit breaker is currently open.
func (s *Scheduler) excludedAgents(t *task.Task) map[string]bool {
	exclude := make(map[string]bool, len(t.FailedAgents))
	for id, failed := range t.FailedAgents {
		if failed {
			exclude[id] = true
		}
	}
	if s.resilience != nil {
		for _, a := range s.registry.List() {
			if s.resilience.Breakers().Open(a.ID) {
				exclude[a.ID] = true
			}
		}
	}
	return exclude
}

// dispatchOne sends taskID to agentID through the resilience wrapper and
// settles the outcome.
func (s *Scheduler) dispatchOne(ctx context.Context, taskID, agentID string) {
	started := time.Now()
	s.bus.Publish(events.TopicTask, events.TaskStartedEvent{ID: taskID, AgentID: agentID, Timestamp: started})

	dctx := ctx
	var cancel context.CancelFunc
	if s.cfg.DispatchTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
	}

	t, ok := s.store.Get(taskID)
	if !ok {
		s.arbiter.Release(taskID)
		_ = s.registry.MarkIdle(agentID)
		return
	}

	result, err := s.resilience.Dispatch(dctx, agentID, t)
	duration := time.Since(started)

	s.arbiter.Release(taskID)
	_ = s.registry.MarkIdle(agentID)
	s.bus.Publish(events.TopicAgent, events.AgentStatusChangedEvent{ID: agentID, Status: agent.StatusIdle.String(), Timestamp: time.Now()})

	if err != nil {
		s.settleFailure(taskID, agentID, err)
		return
	}
	if isMalformed(result) {
		var domain string
		_ = s.store.Mutate(taskID, func(t *task.Task) {
			if t.FailedAgents == nil {
				t.FailedAgents = make(map[string]bool)
			}
			t.FailedAgents[agentID] = true
			t.RetryCount++
			domain = t.Domain
			t.Status = task.StatusFailed
			t.FailureReason = task.ReasonMalformedDispatch
		})
		_ = s.reflector.Learn(agentID, domain, false, 0, s.persist)
		s.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: taskID, AgentID: agentID, Reason: string(task.ReasonMalformedDispatch), Timestamp: time.Now()})
		if s.aggregator != nil {
			s.aggregator.OnChildSettled(taskID)
		}
		s.cascadeFailures(map[string]bool{taskID: true})
		return
	}

	if result.ConfidenceScore < s.cfg.MinResultConfidence {
		s.settleLowConfidence(taskID, agentID, result)
		return
	}

	s.settleSuccess(taskID, agentID, result, duration)
}

// isMalformed reports whether result fails the structural/numeric checks
// §7 requires of a Dispatcher response: present, a finite confidence in
// [0,1], and a finite, non-negative actual impact. NaN passes a bare
// `< 0 || > 1` comparison silently (NaN comparisons are always false), and
// +Inf passes the `< 0` impact check, so both are checked explicitly rather
// than relying on range comparisons alone.
func isMalformed(result *task.Result) bool {
	if result == nil {
		return true
	}
	if math.IsNaN(result.ConfidenceScore) || math.IsInf(result.ConfidenceScore, 0) {
		return true
	}
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 1 {
		return true
	}
	if math.IsNaN(result.ActualImpact) || math.IsInf(result.ActualImpact, 0) {
		return true
	}
	if result.ActualImpact < 0 {
		return true
	}
	return false
}

func (s *Scheduler) settleSuccess(taskID, agentID string, result *task.Result, duration time.Duration) {
	result.ExecutionTimeMS = duration.Milliseconds()

	var domain string
	var collaborative bool
	var parentID string
	_ = s.store.Mutate(taskID, func(t *task.Task) {
		t.Status = task.StatusCompleted
		t.Result = result
		domain = t.Domain
		collaborative = t.Collaborative
		parentID = t.ParentTaskID
	})

	if collaborative && s.collab != nil {
		contextID := parentID
		if contextID == "" {
			contextID = taskID
		}
		s.collab.Share(contextID, agentID, result.ResultData)
	}

	if err := s.reflector.Learn(agentID, domain, true, result.ActualImpact, s.persist); err != nil {
		log.Printf("learn update failed for agent %q: %v", agentID, err)
	}

	s.bus.Publish(events.TopicTask, events.TaskCompletedEvent{
		ID: taskID, AgentID: agentID,
		ConfidenceScore: result.ConfidenceScore, ActualImpact: result.ActualImpact,
		Duration: duration, Timestamp: time.Now(),
	})

	if s.aggregator != nil {
		s.aggregator.OnChildSettled(taskID)
	}
}

// settleLowConfidence implements §4.6 step 7's reassignment path: a
// dispatch that resolved but whose confidenceScore fell below
// MinResultConfidence is treated like a failed attempt for retry
// bookkeeping and learning purposes, even though the Dispatcher itself
// returned no error.
func (s *Scheduler) settleLowConfidence(taskID, agentID string, result *task.Result) {
	var retryCount int
	var failedPermanently bool
	var domain string

	_ = s.store.Mutate(taskID, func(t *task.Task) {
		if t.FailedAgents == nil {
			t.FailedAgents = make(map[string]bool)
		}
		t.FailedAgents[agentID] = true
		t.RetryCount++
		retryCount = t.RetryCount
		domain = t.Domain

		if retryCount >= s.cfg.MaxRetries {
			t.Status = task.StatusFailed
			t.FailureReason = task.ReasonLowConfidenceAbort
			failedPermanently = true
		} else {
			t.Status = task.StatusPending
			t.AssignedTo = ""
		}
	})

	if err := s.reflector.Learn(agentID, domain, false, 0, s.persist); err != nil {
		log.Printf("learn update failed for agent %q: %v", agentID, err)
	}

	if failedPermanently {
		s.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: taskID, AgentID: agentID, Reason: string(task.ReasonLowConfidenceAbort), Timestamp: time.Now()})
		if s.aggregator != nil {
			s.aggregator.OnChildSettled(taskID)
		}
		s.cascadeFailures(map[string]bool{taskID: true})
		return
	}

	log.Printf("low-confidence result (%.2f < %.2f) from agent %q for task %q (attempt %d/%d)",
		result.ConfidenceScore, s.cfg.MinResultConfidence, agentID, taskID, retryCount, s.cfg.MaxRetries)
}

func (s *Scheduler) settleFailure(taskID, agentID string, cause error) {
	var retryCount int
	var failedPermanently bool
	var domain string

	_ = s.store.Mutate(taskID, func(t *task.Task) {
		if t.FailedAgents == nil {
			t.FailedAgents = make(map[string]bool)
		}
		t.FailedAgents[agentID] = true
		t.RetryCount++
		retryCount = t.RetryCount
		domain = t.Domain

		if retryCount >= s.cfg.MaxRetries {
			t.Status = task.StatusFailed
			t.FailureReason = task.ReasonMaxRetriesExhausted
			failedPermanently = true
		} else {
			t.Status = task.StatusPending
			t.AssignedTo = ""
		}
	})

	_ = s.reflector.Learn(agentID, domain, false, 0, s.persist)

	if failedPermanently {
		s.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: taskID, AgentID: agentID, Reason: string(task.ReasonMaxRetriesExhausted), Timestamp: time.Now()})
		if s.aggregator != nil {
			s.aggregator.OnChildSettled(taskID)
		}
		s.cascadeFailures(map[string]bool{taskID: true})
		return
	}

	log.Printf("dispatch to agent %q failed for task %q (attempt %d/%d): %v", agentID, taskID, retryCount, s.cfg.MaxRetries, cause)
}
