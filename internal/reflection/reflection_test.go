package reflection

import (
	"testing"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/task"
)

func allDomains(string) bool { return true }

func newHarness(t *testing.T) (*agent.Registry, *task.Store, *Reflector) {
	t.Helper()
	reg := agent.New(allDomains, nil)
	store := task.New(allDomains)
	return reg, store, New(reg, store)
}

func TestPredictSuccessNoHistoryUsesDefaultBlend(t *testing.T) {
	reg, store, refl := newHarness(t)
	id, err := reg.Register(agent.Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 10},
		APIEndpoint:  "e1",
		Performance:  agent.NewPerformanceStats(),
	})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := reg.Get(id)

	taskID, err := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 3})
	if err != nil {
		t.Fatal(err)
	}
	tk, _ := store.Get(taskID)

	p := refl.PredictSuccess(a, tk)
	if p <= 0 || p > 1 {
		t.Fatalf("expected prediction in (0,1], got %f", p)
	}
}

func TestPredictSuccessWithHistoryWeightsTowardSuccessRate(t *testing.T) {
	reg, store, refl := newHarness(t)
	id, _ := reg.Register(agent.Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 10},
		APIEndpoint:  "e1",
		Performance:  agent.NewPerformanceStats(),
	})

	for i := 0; i < 20; i++ {
		if err := refl.Learn(id, "backend", true, 5, nil); err != nil {
			t.Fatal(err)
		}
	}

	a, _ := reg.Get(id)
	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 3})
	tk, _ := store.Get(taskID)

	p := refl.PredictSuccess(a, tk)
	if p < 0.9 {
		t.Errorf("expected a long perfect track record to push prediction near 1, got %f", p)
	}
}

func TestPredictSuccessInterferencePenalizesPrediction(t *testing.T) {
	reg, store, refl := newHarness(t)
	id, _ := reg.Register(agent.Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 10},
		APIEndpoint:  "e1",
		Performance:  agent.NewPerformanceStats(),
	})
	a, _ := reg.Get(id)

	// A processing task in "infra" that t declares interference with.
	infraID, _ := store.Submit(task.Spec{Description: "infra work", DomainLabel: "backend", ComplexityScore: 2})
	_ = store.Mutate(infraID, func(tk *task.Task) { tk.Domain = "infra"; tk.Status = task.StatusProcessing })

	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 3, InterferedBy: []string{"infra"}})
	tk, _ := store.Get(taskID)

	withInterference := refl.PredictSuccess(a, tk)

	baseline := refl.PredictSuccess(a, &task.Task{ID: "baseline", Domain: "backend", Complexity: 3})
	if withInterference >= baseline {
		t.Errorf("expected active interference to reduce the prediction below baseline %f, got %f", baseline, withInterference)
	}
}

func TestEvaluateAssignmentExcludesRejectedAndExcluded(t *testing.T) {
	reg, store, refl := newHarness(t)

	goodID, _ := reg.Register(agent.Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 10},
		APIEndpoint:  "e1",
		Performance:  agent.NewPerformanceStats(),
	})
	weakID, _ := reg.Register(agent.Descriptor{
		DomainLabels: []string{"frontend"},
		SkillScores:  map[string]float64{"frontend": 1},
		APIEndpoint:  "e2",
		Performance:  agent.NewPerformanceStats(),
	})

	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 8})
	tk, _ := store.Get(taskID)

	best, score := refl.EvaluateAssignment(tk, nil)
	if best == nil || best.ID != goodID {
		t.Fatalf("expected the domain-matched agent %s to win, got %v", goodID, best)
	}
	if score <= 0 {
		t.Errorf("expected a positive predicted score, got %f", score)
	}
	_ = weakID

	best, _ = refl.EvaluateAssignment(tk, map[string]bool{goodID: true})
	if best != nil {
		t.Fatalf("expected no candidate once the only compatible agent is excluded, got %v", best)
	}
}

func TestEvaluateAssignmentNoCandidates(t *testing.T) {
	_, store, refl := newHarness(t)
	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 3})
	tk, _ := store.Get(taskID)

	best, score := refl.EvaluateAssignment(tk, nil)
	if best != nil || score != 0 {
		t.Fatalf("expected (nil, 0) with an empty registry, got (%v, %f)", best, score)
	}
}

func TestLearnUpdatesBothDomainAndGlobalRollups(t *testing.T) {
	reg, _, refl := newHarness(t)
	id, _ := reg.Register(agent.Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 5},
		APIEndpoint:  "e1",
		Performance:  agent.NewPerformanceStats(),
	})

	var persisted agent.DomainPerf
	persistCalled := false
	err := refl.Learn(id, "backend", true, 7.0, func(agentID, domain string, dp agent.DomainPerf) {
		persistCalled = true
		persisted = dp
	})
	if err != nil {
		t.Fatal(err)
	}
	if !persistCalled {
		t.Fatal("expected persist callback to be invoked")
	}
	if persisted.TasksCompleted != 1 || persisted.AverageImpact != 7.0 {
		t.Fatalf("unexpected persisted snapshot: %+v", persisted)
	}

	a, _ := reg.Get(id)
	if a.Perf.TasksCompleted != 1 {
		t.Fatalf("expected global rollup to also advance, got %+v", a.Perf)
	}
}

func TestLearnUnknownAgent(t *testing.T) {
	_, _, refl := newHarness(t)
	if err := refl.Learn("missing", "backend", true, 1, nil); err == nil {
		t.Fatal("expected error learning for an unknown agent")
	}
}

func TestSuggestRemediationSplitWhenComplex(t *testing.T) {
	_, store, refl := newHarness(t)
	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 9})
	tk, _ := store.Get(taskID)

	if got := refl.SuggestRemediation(tk); got != RemediationSplit {
		t.Errorf("expected SPLIT for high-complexity task, got %v", got)
	}
}

func TestSuggestRemediationCollaborateWhenMultipleCover(t *testing.T) {
	reg, store, refl := newHarness(t)
	reg.Register(agent.Descriptor{DomainLabels: []string{"backend"}, SkillScores: map[string]float64{"backend": 5}, APIEndpoint: "e1", Performance: agent.NewPerformanceStats()})
	reg.Register(agent.Descriptor{DomainLabels: []string{"backend"}, SkillScores: map[string]float64{"backend": 5}, APIEndpoint: "e2", Performance: agent.NewPerformanceStats()})

	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 4})
	tk, _ := store.Get(taskID)

	if got := refl.SuggestRemediation(tk); got != RemediationCollaborate {
		t.Errorf("expected COLLABORATE when two agents cover the domain, got %v", got)
	}
}

func TestSuggestRemediationRerouteOtherwise(t *testing.T) {
	reg, store, refl := newHarness(t)
	reg.Register(agent.Descriptor{DomainLabels: []string{"backend"}, SkillScores: map[string]float64{"backend": 5}, APIEndpoint: "e1", Performance: agent.NewPerformanceStats()})

	taskID, _ := store.Submit(task.Spec{Description: "x", DomainLabel: "backend", ComplexityScore: 4})
	tk, _ := store.Get(taskID)

	if got := refl.SuggestRemediation(tk); got != RemediationReroute {
		t.Errorf("expected REROUTE with only one covering agent, got %v", got)
	}
}
