package task

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loc-core/loc/internal/errs"
)

// DomainValidator reports whether a domain label belongs to the configured
// valid set. Injected so TaskStore does not depend on the config package.
type DomainValidator func(domain string) bool

// Store is the canonical set of tasks (including sub-tasks), indexed by id.
// It is one component of a single engine instance's state; instances never
// share a Store.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	validDoms DomainValidator
}

// New creates an empty Store. validator is consulted on every submission.
func New(validator DomainValidator) *Store {
	return &Store{
		tasks:     make(map[string]*Task),
		validDoms: validator,
	}
}

// Valid reports whether t's domain, complexity, and description still pass
// the same structural checks Submit/InjectSubtask apply on arrival. A
// pending task can fail this after the fact if something mutated it
// directly (a test harness, a seed script, a future admin surface) rather
// than going through insert — the scheduler treats that as an
// INVALID_TASK on first inspection rather than ever attempting to dispatch
// it (§7).
func (s *Store) Valid(t *Task) bool {
	if t.Description == "" {
		return false
	}
	if t.Complexity < 1 || t.Complexity > 10 {
		return false
	}
	if s.validDoms != nil && !s.validDoms(t.Domain) {
		return false
	}
	return true
}

// Submit validates and stores a new top-level task, returning its id.
func (s *Store) Submit(spec Spec) (string, error) {
	return s.insert(spec, "")
}

// InjectSubtask validates and stores a new sub-task of parentID, returning
// its id, and appends it to the parent's Subtasks list.
func (s *Store) InjectSubtask(parentID string, spec Spec) (string, error) {
	s.mu.Lock()
	parent, ok := s.tasks[parentID]
	s.mu.Unlock()
	if !ok {
		return "", errs.New(errs.KindUnknownTask, "parent task %q not found", parentID)
	}

	id, err := s.insert(spec, parentID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	parent.Subtasks = append(parent.Subtasks, id)
	if parent.Status == StatusPending {
		parent.Status = StatusWaitingForSubtasks
	}
	parent.UpdatedAt = time.Now()
	s.mu.Unlock()

	return id, nil
}

func (s *Store) insert(spec Spec, parentID string) (string, error) {
	if spec.Description == "" {
		return "", errs.New(errs.KindInvalidTask, "description is required")
	}
	if spec.DomainLabel == "" || (s.validDoms != nil && !s.validDoms(spec.DomainLabel)) {
		return "", errs.New(errs.KindInvalidTask, "domain %q is not a configured valid domain", spec.DomainLabel)
	}
	if spec.ComplexityScore < 1 || spec.ComplexityScore > 10 {
		return "", errs.New(errs.KindInvalidTask, "complexity %d out of range [1,10]", spec.ComplexityScore)
	}

	priority := spec.Priority
	if priority == 0 {
		priority = 1
	}
	priority = clampPriority(priority)

	id := spec.ID
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, exists := s.tasks[id]; exists {
			return "", errs.New(errs.KindInvalidTask, "task id %q already exists", id)
		}
	} else {
		id = uuid.NewString()
	}

	now := time.Now()
	t := &Task{
		ID:           id,
		Description:  spec.Description,
		Domain:       spec.DomainLabel,
		Complexity:   spec.ComplexityScore,
		Priority:     priority,
		Dependencies: append([]string(nil), spec.Dependencies...),
		InterferedBy: append([]string(nil), spec.InterferedBy...),
		ParentTaskID: parentID,
		Status:       StatusPending,
		FailedAgents: make(map[string]bool),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if spec.ResourceRequirements != nil {
		t.ResourceRequirements = make(map[string]ResourceMode, len(spec.ResourceRequirements))
		for k, v := range spec.ResourceRequirements {
			t.ResourceRequirements[k] = v
		}
	}

	s.tasks[id] = t
	return id, nil
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 10 {
		return 10
	}
	return p
}

// Get returns a defensive copy of the task by id.
func (s *Store) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return clone(t), true
}

// All returns defensive copies of every task in the store.
func (s *Store) All() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, clone(t))
	}
	return out
}

// Mutate runs fn against the live task under the store's lock, allowing
// scheduler-level components to update status/assignedTo/retryCount/
// failedAgents atomically with other engine-wide state mutations.
func (s *Store) Mutate(id string, fn func(t *Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return errs.New(errs.KindUnknownTask, "task %q not found", id)
	}
	fn(t)
	t.UpdatedAt = time.Now()
	return nil
}

// IsResolved reports whether dep's terminal status satisfies readiness for
// a dependent: completed tasks resolve; failed tasks never resolve (LOC
// treats sub-task and top-level dependency semantics uniformly, §9(c), and
// carries no soft/skip failure mode — a failed antecedent always cascades).
func (s *Store) IsResolved(depID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dep, ok := s.tasks[depID]
	if !ok {
		return false
	}
	return dep.Status == StatusCompleted
}

// ReadyQueueSnapshot returns pending, non-parent tasks whose dependencies
// are all completed, sorted by (priority desc, predictedImpact desc).
// Stable ordering across calls is not guaranteed; priority ordering is.
func (s *Store) ReadyQueueSnapshot() []*Task {
	s.mu.RLock()
	candidates := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.IsReady(s.isResolvedLocked) {
			candidates = append(candidates, clone(t))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].PredictedImpact > candidates[j].PredictedImpact
	})
	return candidates
}

func (s *Store) isResolvedLocked(depID string) bool {
	dep, ok := s.tasks[depID]
	if !ok {
		return false
	}
	return dep.Status == StatusCompleted
}

// PendingIDs returns the ids of every task currently pending, including
// parents waiting on sub-tasks.
func (s *Store) PendingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, t := range s.tasks {
		if t.Status == StatusPending || t.Status == StatusWaitingForSubtasks {
			ids = append(ids, id)
		}
	}
	return ids
}

// DependenciesOf returns the recorded dependency ids for a task, or nil if
// the task is unknown.
func (s *Store) DependenciesOf(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	return append([]string(nil), t.Dependencies...)
}
