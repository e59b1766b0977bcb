// Package aggregator implements the SubtaskAggregator: on every child
// settlement it checks sibling completeness, composes the parent's result
// once every sub-task has settled, and recurses upward through nested
// decompositions. Grounded on the completion-hook shape of the teacher's
// internal/scheduler/workflow.go OnTaskCompleted, retargeted from
// spawning follow-up steps to composing a parent's aggregate result.
package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/loc-core/loc/internal/collab"
	"github.com/loc-core/loc/internal/events"
	"github.com/loc-core/loc/internal/task"
)

// SystemAgentID is recorded as AssignedTo on a task whose result was
// composed by the aggregator rather than produced by a dispatched agent.
const SystemAgentID = "AGGREGATOR_SYSTEM"

// Aggregator watches sub-task settlement and composes parent results.
type Aggregator struct {
	store  *task.Store
	bus    *events.Bus
	collab *collab.Bus
}

// New binds an Aggregator to one engine's store, event bus, and
// Collaboration Bus. collaborationBus may be nil, in which case composed
// parents carry no collaboration-bus contributions.
func New(store *task.Store, bus *events.Bus, collaborationBus *collab.Bus) *Aggregator {
	return &Aggregator{store: store, bus: bus, collab: collaborationBus}
}

// OnChildSettled is called by the scheduler whenever a task reaches
// StatusCompleted or StatusFailed. If the task has a parent and every
// sibling has now also settled, it composes (or fails) the parent and
// recurses upward.
func (a *Aggregator) OnChildSettled(childID string) {
	child, ok := a.store.Get(childID)
	if !ok || child.ParentTaskID == "" {
		return
	}

	parentID := child.ParentTaskID
	parent, ok := a.store.Get(parentID)
	if !ok {
		return
	}

	var siblings []*task.Task
	anyFailed := false
	for _, sid := range parent.Subtasks {
		s, ok := a.store.Get(sid)
		if !ok || (s.Status != task.StatusCompleted && s.Status != task.StatusFailed) {
			return // not every sub-task has settled yet
		}
		siblings = append(siblings, s)
		if s.Status == task.StatusFailed {
			anyFailed = true
		}
	}

	if anyFailed {
		a.failParent(parentID)
		a.OnChildSettled(parentID)
		return
	}

	a.composeParent(parentID, siblings)
	a.OnChildSettled(parentID)
}

func (a *Aggregator) failParent(parentID string) {
	_ = a.store.Mutate(parentID, func(t *task.Task) {
		if t.Status == task.StatusCompleted || t.Status == task.StatusFailed {
			return
		}
		t.Status = task.StatusFailed
		t.FailureReason = task.ReasonDependencyCascade
	})
	a.bus.Publish(events.TopicTask, events.TaskFailedEvent{
		ID: parentID, AgentID: SystemAgentID, Reason: string(task.ReasonDependencyCascade), Timestamp: time.Now(),
	})
}

// composeParent concatenates every sub-task's result text plus any
// collaboration-bus contributions shared under the parent's context,
// averages confidence, impact, and predicted impact, and sums execution
// time, per §4.7's aggregation formula and collab-merge step.
func (a *Aggregator) composeParent(parentID string, siblings []*task.Task) {
	var parts []string
	var confSum, impactSum, predictedSum float64
	var execSum int64
	n := 0

	for _, s := range siblings {
		if s.Result == nil {
			continue
		}
		parts = append(parts, s.Result.ResultData)
		confSum += s.Result.ConfidenceScore
		impactSum += s.Result.ActualImpact
		predictedSum += s.PredictedImpact
		execSum += s.Result.ExecutionTimeMS
		n++
	}

	if a.collab != nil {
		parts = append(parts, a.collabContributions(parentID)...)
	}

	agg := &task.Result{ResultData: strings.Join(parts, "\n"), ExecutionTimeMS: execSum}
	if n > 0 {
		agg.ConfidenceScore = confSum / float64(n)
		agg.ActualImpact = impactSum / float64(n)
		agg.PredictedImpact = predictedSum / float64(n)
	}

	var settled bool
	_ = a.store.Mutate(parentID, func(t *task.Task) {
		if t.Status == task.StatusCompleted || t.Status == task.StatusFailed {
			return
		}
		t.Status = task.StatusCompleted
		t.Result = agg
		t.AssignedTo = SystemAgentID
		settled = true
	})
	if !settled {
		return
	}

	a.bus.Publish(events.TopicAggregation, events.AggregationCompletedEvent{
		ParentID: parentID, ChildCount: len(siblings), Timestamp: time.Now(),
	})
	a.bus.Publish(events.TopicTask, events.TaskCompletedEvent{
		ID: parentID, AgentID: SystemAgentID,
		ConfidenceScore: agg.ConfidenceScore, ActualImpact: agg.ActualImpact,
		Duration: 0, Timestamp: time.Now(),
	})

	if a.collab != nil {
		a.collab.Close(parentID)
	}
}

// collabContributions renders every result shared under parentID's
// collaboration context, sorted by contributing agent id for determinism.
func (a *Aggregator) collabContributions(parentID string) []string {
	shared := a.collab.Snapshot(parentID)
	if len(shared) == 0 {
		return nil
	}
	ids := make([]string, 0, len(shared))
	for id := range shared {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("%s (collab): %s", id, shared[id]))
	}
	return out
}
