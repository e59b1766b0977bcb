package scoring

import (
	"testing"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/task"
)

func TestScorePerfectMatch(t *testing.T) {
	a := &agent.Agent{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 10},
		Perf:         &agent.PerformanceStats{TasksCompleted: 10, SuccessRate: 1.0},
	}
	tk := &task.Task{Domain: "backend", Complexity: 5, Priority: 10}

	score, ok := Score(a, tk)
	if !ok {
		t.Fatal("expected a well-matched agent to clear the reject floor")
	}
	if score <= 0.8 {
		t.Errorf("expected a high score for a perfect domain/skill/history match, got %f", score)
	}
}

func TestScoreWrongDomainRejected(t *testing.T) {
	a := &agent.Agent{
		DomainLabels: []string{"frontend"},
		SkillScores:  map[string]float64{"frontend": 1},
		Perf:         &agent.PerformanceStats{},
	}
	tk := &task.Task{Domain: "backend", Complexity: 9, Priority: 1}

	_, ok := Score(a, tk)
	if ok {
		t.Error("expected an agent with no domain coverage and weak skill fit to fall below the reject floor")
	}
}

func TestScoreNilPerformanceUsesDefaults(t *testing.T) {
	a := &agent.Agent{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 8},
		Perf:         nil,
	}
	tk := &task.Task{Domain: "backend", Complexity: 4, Priority: 5}

	score, ok := Score(a, tk)
	if !ok {
		t.Fatal("expected domain-matched agent with nil performance to still score above the floor")
	}
	if score <= 0 {
		t.Errorf("expected a positive score, got %f", score)
	}
}

func TestScoreMissingSkillFallsBackToMeanSkill(t *testing.T) {
	a := &agent.Agent{
		DomainLabels: []string{"backend", "infra"},
		SkillScores:  map[string]float64{"infra": 10},
		Perf:         &agent.PerformanceStats{},
	}
	tk := &task.Task{Domain: "backend", Complexity: 3, Priority: 1}

	got := SkillFit(a, tk)
	want := 1.0 // 0.7*mean(10)=7.0 skill vs complexity 3 -> ns(0.7) >= nc(0.3)
	if got != want {
		t.Errorf("SkillFit() = %f, want %f", got, want)
	}
}

func TestScoreZeroComplexityIsFullSkillFit(t *testing.T) {
	a := &agent.Agent{SkillScores: map[string]float64{"backend": 1}}
	tk := &task.Task{Domain: "backend", Complexity: 0}

	if got := SkillFit(a, tk); got != 1.0 {
		t.Errorf("expected zero-complexity task to be a full skill fit, got %f", got)
	}
}
