// Package reflection implements Meta-Reflection: predicted success,
// predicted impact, the learning update, interference adjustment, and the
// remediation selector. Scoring and prediction are kept as separate pure
// functions of (agent, task, history snapshot) per the design note "keep
// scoring and prediction... independently testable" — logging idiom
// grounded on the teacher's internal/orchestrator/resilience.go breaker
// state-change logging.
package reflection

import (
	"log"
	"time"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/scoring"
	"github.com/loc-core/loc/internal/task"
)

// Remediation is the scheduler's response to a low-prediction assignment.
type Remediation int

const (
	RemediationNone Remediation = iota
	RemediationSplit
	RemediationCollaborate
	RemediationReroute
)

func (r Remediation) String() string {
	switch r {
	case RemediationSplit:
		return "SPLIT"
	case RemediationCollaborate:
		return "COLLABORATE"
	case RemediationReroute:
		return "REROUTE"
	default:
		return "NONE"
	}
}

// Reflector is the meta-reflective strategy selector. It is a thin
// read-mostly view over the registry and store it was constructed with;
// it never dispatches and never mutates task/agent lifecycle fields other
// than the agent's performance stats (via Learn).
type Reflector struct {
	registry *agent.Registry
	store    *task.Store
}

// New constructs a Reflector bound to one engine's registry and store.
func New(registry *agent.Registry, store *task.Store) *Reflector {
	return &Reflector{registry: registry, store: store}
}

// PredictSuccess computes meta-reflection's probabilistic prediction for
// (a, t), blending history against skill fit by experience and then
// discounting for active domain interference.
func (f *Reflector) PredictSuccess(a *agent.Agent, t *task.Task) float64 {
	dp, hasHistory := a.Perf.Domains[t.Domain]
	var successRate, uncertainty float64
	var tasksCompleted int
	if hasHistory {
		successRate = dp.SuccessRate
		uncertainty = dp.Uncertainty
		tasksCompleted = dp.TasksCompleted
	} else {
		def := agent.DefaultDomainPerf()
		successRate = def.SuccessRate
		uncertainty = def.Uncertainty
	}
	if uncertainty == 0 {
		uncertainty = 1.0 / float64(tasksCompleted+1)
	}

	skillFit := scoring.SkillFit(a, t)
	prediction := successRate*(1-uncertainty) + skillFit*uncertainty

	interferers := f.countInterferers(t)
	if interferers > 0 {
		log.Printf("INTERFERENCE_DETECTED: task=%s domain=%s interferers=%d", t.ID, t.Domain, interferers)
		penalty := 0.15 * float64(interferers)
		prediction -= penalty
		if prediction < 0.1 {
			prediction = 0.1
		}
	}
	return prediction
}

func (f *Reflector) countInterferers(t *task.Task) int {
	if len(t.InterferedBy) == 0 {
		return 0
	}
	interfering := make(map[string]bool, len(t.InterferedBy))
	for _, d := range t.InterferedBy {
		interfering[d] = true
	}
	count := 0
	for _, other := range f.store.All() {
		if other.ID == t.ID {
			continue
		}
		if other.Status != task.StatusProcessing && other.Status != task.StatusCompleted {
			continue
		}
		if interfering[other.Domain] {
			count++
		}
	}
	return count
}

// EvaluateAssignment narrows idle, non-excluded agents to those the
// Compatibility Scorer does not reject (§4.4's <0.2 floor — "Compatibility
// Scorer ranks" in §2's data flow), then ranks the survivors by
// PredictSuccess and returns the arg-max with its predicted probability,
// or (nil, 0) if no candidate remains.
func (f *Reflector) EvaluateAssignment(t *task.Task, excludeAgentIDs map[string]bool) (*agent.Agent, float64) {
	var best *agent.Agent
	bestScore := 0.0
	first := true

	for _, a := range f.registry.IdleAgents() {
		if excludeAgentIDs[a.ID] {
			continue
		}
		if _, ok := scoring.Score(a, t); !ok {
			continue
		}
		p := f.PredictSuccess(a, t)
		if first || p > bestScore {
			best = a
			bestScore = p
			first = false
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

// PredictImpact estimates the impact of completing t, blending task
// complexity/priority against the domain-wide historical average impact.
func (f *Reflector) PredictImpact(t *task.Task) float64 {
	baseImpact := float64(t.Complexity)
	prioMul := 1 + float64(t.Priority)/10.0

	var weightedSum, weightTotal float64
	for _, a := range f.registry.List() {
		dp, ok := a.Perf.Domains[t.Domain]
		if !ok || dp.TasksCompleted == 0 {
			continue
		}
		weightedSum += dp.AverageImpact * float64(dp.TasksCompleted)
		weightTotal += float64(dp.TasksCompleted)
	}
	domAvg := 5.0
	if weightTotal > 0 {
		domAvg = weightedSum / weightTotal
	}

	return 0.6*baseImpact*prioMul + 0.4*domAvg
}

// PersistFunc optionally persists the updated domain performance snapshot;
// attached by the engine when a Performance Store is configured (§4.5
// "[DOMAIN]").
type PersistFunc func(agentID, domain string, dp agent.DomainPerf)

// Learn applies the running-mean learning update for one (agent, domain)
// outcome, per §4.5. persist, if non-nil, is invoked after the in-memory
// update with the resulting snapshot.
func (f *Reflector) Learn(agentID, domain string, success bool, impact float64, persist PersistFunc) error {
	var snapshot agent.DomainPerf
	err := f.registry.Mutate(agentID, func(a *agent.Agent) {
		dp, ok := a.Perf.Domains[domain]
		if !ok {
			def := agent.DefaultDomainPerf()
			dp = &def
			a.Perf.Domains[domain] = dp
		}
		dp.RecordOutcome(success, impact)
		a.Perf.RecordOutcome(success, impact, time.Now())
		snapshot = *dp
	})
	if err != nil {
		return err
	}
	if persist != nil {
		persist(agentID, domain, snapshot)
	}
	return nil
}

// SuggestRemediation picks SPLIT when the task is too complex for a single
// agent, COLLABORATE when at least two agents cover the domain, else
// REROUTE.
func (f *Reflector) SuggestRemediation(t *task.Task) Remediation {
	if t.Complexity > 6 {
		return RemediationSplit
	}
	covering := 0
	for _, a := range f.registry.List() {
		if a.HasDomain(t.Domain) {
			covering++
		}
	}
	if covering >= 2 {
		return RemediationCollaborate
	}
	return RemediationReroute
}
