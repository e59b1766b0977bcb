package aggregator

import (
	"strings"
	"testing"

	"github.com/loc-core/loc/internal/collab"
	"github.com/loc-core/loc/internal/events"
	"github.com/loc-core/loc/internal/task"
)

func allDomains(string) bool { return true }

func TestOnChildSettledComposesParentOnceAllSiblingsSucceed(t *testing.T) {
	store := task.New(allDomains)
	bus := events.New()
	agg := New(store, bus, collab.New())

	parentID, err := store.Submit(task.Spec{Description: "parent", DomainLabel: "backend", ComplexityScore: 9})
	if err != nil {
		t.Fatal(err)
	}
	child1, err := store.InjectSubtask(parentID, task.Spec{Description: "c1", DomainLabel: "backend", ComplexityScore: 4})
	if err != nil {
		t.Fatal(err)
	}
	child2, err := store.InjectSubtask(parentID, task.Spec{Description: "c2", DomainLabel: "backend", ComplexityScore: 5})
	if err != nil {
		t.Fatal(err)
	}

	_ = store.Mutate(child1, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.Result = &task.Result{ResultData: "r1", ConfidenceScore: 0.8, ActualImpact: 4, ExecutionTimeMS: 100}
	})
	agg.OnChildSettled(child1)

	parent, _ := store.Get(parentID)
	if parent.Status != task.StatusWaitingForSubtasks {
		t.Fatalf("expected parent to still be waiting on an unsettled sibling, got %v", parent.Status)
	}

	_ = store.Mutate(child2, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.Result = &task.Result{ResultData: "r2", ConfidenceScore: 0.6, ActualImpact: 6, ExecutionTimeMS: 200}
	})
	agg.OnChildSettled(child2)

	parent, _ = store.Get(parentID)
	if parent.Status != task.StatusCompleted {
		t.Fatalf("expected parent to complete once both siblings settle, got %v", parent.Status)
	}
	if parent.AssignedTo != SystemAgentID {
		t.Errorf("expected AssignedTo = %s, got %s", SystemAgentID, parent.AssignedTo)
	}
	if parent.Result == nil {
		t.Fatal("expected a composed result")
	}
	if parent.Result.ConfidenceScore != 0.7 {
		t.Errorf("expected averaged confidence 0.7, got %f", parent.Result.ConfidenceScore)
	}
	if parent.Result.ActualImpact != 5 {
		t.Errorf("expected averaged impact 5, got %f", parent.Result.ActualImpact)
	}
	if parent.Result.ExecutionTimeMS != 300 {
		t.Errorf("expected summed execution time 300, got %d", parent.Result.ExecutionTimeMS)
	}
}

func TestOnChildSettledAppendsCollabContributionsAndAveragesPredictedImpact(t *testing.T) {
	store := task.New(allDomains)
	bus := events.New()
	collabBus := collab.New()
	agg := New(store, bus, collabBus)

	parentID, _ := store.Submit(task.Spec{Description: "parent", DomainLabel: "backend", ComplexityScore: 9})
	child1, _ := store.InjectSubtask(parentID, task.Spec{Description: "c1", DomainLabel: "backend", ComplexityScore: 4})
	child2, _ := store.InjectSubtask(parentID, task.Spec{Description: "c2", DomainLabel: "backend", ComplexityScore: 5})

	collabBus.Share(parentID, "agent-z", "found the schema mismatch")

	_ = store.Mutate(child1, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.PredictedImpact = 4
		tk.Result = &task.Result{ResultData: "r1", ConfidenceScore: 0.8, ActualImpact: 4}
	})
	agg.OnChildSettled(child1)

	_ = store.Mutate(child2, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.PredictedImpact = 6
		tk.Result = &task.Result{ResultData: "r2", ConfidenceScore: 0.6, ActualImpact: 6}
	})
	agg.OnChildSettled(child2)

	parent, _ := store.Get(parentID)
	if parent.Result == nil {
		t.Fatal("expected a composed result")
	}
	if parent.Result.PredictedImpact != 5 {
		t.Errorf("expected averaged predicted impact 5, got %f", parent.Result.PredictedImpact)
	}
	if !strings.Contains(parent.Result.ResultData, "agent-z (collab): found the schema mismatch") {
		t.Errorf("expected composed result to include the collab contribution, got %q", parent.Result.ResultData)
	}

	if snap := collabBus.Snapshot(parentID); len(snap) != 0 {
		t.Errorf("expected the collaboration context to be closed after composing, got %v", snap)
	}
}

func TestOnChildSettledFailsParentWhenAnySiblingFails(t *testing.T) {
	store := task.New(allDomains)
	bus := events.New()
	agg := New(store, bus, collab.New())

	parentID, _ := store.Submit(task.Spec{Description: "parent", DomainLabel: "backend", ComplexityScore: 9})
	child1, _ := store.InjectSubtask(parentID, task.Spec{Description: "c1", DomainLabel: "backend", ComplexityScore: 4})
	child2, _ := store.InjectSubtask(parentID, task.Spec{Description: "c2", DomainLabel: "backend", ComplexityScore: 5})

	_ = store.Mutate(child1, func(tk *task.Task) {
		tk.Status = task.StatusFailed
		tk.FailureReason = task.ReasonMaxRetriesExhausted
	})
	agg.OnChildSettled(child1)
	_ = store.Mutate(child2, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.Result = &task.Result{ResultData: "r2", ConfidenceScore: 0.9, ActualImpact: 5}
	})
	agg.OnChildSettled(child2)

	parent, _ := store.Get(parentID)
	if parent.Status != task.StatusFailed || parent.FailureReason != task.ReasonDependencyCascade {
		t.Fatalf("expected parent to fail via cascade when any sub-task fails, got %v/%v", parent.Status, parent.FailureReason)
	}
}

func TestOnChildSettledNoParentIsNoop(t *testing.T) {
	store := task.New(allDomains)
	bus := events.New()
	agg := New(store, bus, collab.New())

	id, _ := store.Submit(task.Spec{Description: "standalone", DomainLabel: "backend", ComplexityScore: 3})
	agg.OnChildSettled(id) // must not panic; task has no ParentTaskID
}

func TestOnChildSettledRecursesThroughNestedParents(t *testing.T) {
	store := task.New(allDomains)
	bus := events.New()
	agg := New(store, bus, collab.New())

	grandparentID, _ := store.Submit(task.Spec{Description: "gp", DomainLabel: "backend", ComplexityScore: 9})
	parentID, _ := store.InjectSubtask(grandparentID, task.Spec{Description: "parent", DomainLabel: "backend", ComplexityScore: 6})
	leafID, _ := store.InjectSubtask(parentID, task.Spec{Description: "leaf", DomainLabel: "backend", ComplexityScore: 3})

	_ = store.Mutate(leafID, func(tk *task.Task) {
		tk.Status = task.StatusCompleted
		tk.Result = &task.Result{ResultData: "leaf", ConfidenceScore: 1, ActualImpact: 3}
	})
	agg.OnChildSettled(leafID)

	parent, _ := store.Get(parentID)
	if parent.Status != task.StatusCompleted {
		t.Fatalf("expected single-child parent to complete, got %v", parent.Status)
	}

	grandparent, _ := store.Get(grandparentID)
	if grandparent.Status != task.StatusCompleted {
		t.Fatalf("expected grandparent to compose transitively once its only child settles, got %v", grandparent.Status)
	}
}
