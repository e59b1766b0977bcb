// Package scoring implements the Compatibility Scorer: a pure function of
// (agent, task) producing a scalar in [0,1], kept separate from prediction
// and dispatch per the design note "Meta-reflection as strategy selector,
// not dispatcher" (grounded on the separation of concerns already present
// in the teacher's internal/orchestrator/resilience.go).
package scoring

import (
	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/task"
)

// RejectFloor is the minimum score an agent must clear to be considered.
const RejectFloor = 0.2

// Score computes the weighted compatibility score for (a, t). ok is false
// when the score falls below RejectFloor, mirroring "Agents with score <
// 0.2 are rejected (returns nil)".
func Score(a *agent.Agent, t *task.Task) (score float64, ok bool) {
	domainFit := 0.0
	if a.HasDomain(t.Domain) {
		domainFit = 1.0
	}

	skillFit := skillFitComponent(a, t)

	successRate := 0.5
	if a.Perf != nil && a.Perf.TasksCompleted > 0 {
		successRate = a.Perf.SuccessRate
	}

	reliability := 0.0
	if a.Perf != nil {
		reliability = 0.5*minF(float64(a.Perf.TasksCompleted)/50.0, 1.0) + 0.5*(float64(t.Priority)/10.0)
	} else {
		reliability = 0.5 * (float64(t.Priority) / 10.0)
	}

	score = 0.4*domainFit + 0.3*skillFit + 0.2*successRate + 0.1*reliability
	if score < RejectFloor {
		return 0, false
	}
	return score, true
}

// skillFitComponent computes the 30% skill-vs-complexity term shared by
// Score and reflection.PredictSuccess.
func skillFitComponent(a *agent.Agent, t *task.Task) float64 {
	s, present := a.SkillScores[t.Domain]
	if !present {
		s = 0.7 * a.MeanSkill()
	}
	ns := s / 10.0
	nc := float64(t.Complexity) / 10.0
	if nc == 0 {
		return 1.0
	}
	if ns >= nc {
		return 1.0
	}
	return ns / nc
}

// SkillFit exposes skillFitComponent for reflection's predictSuccess blend,
// which needs the identical skill-vs-complexity figure the scorer uses.
func SkillFit(a *agent.Agent, t *task.Task) float64 {
	return skillFitComponent(a, t)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
