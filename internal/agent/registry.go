package agent

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loc-core/loc/internal/errs"
)

// DomainValidator reports whether a domain label belongs to the configured
// valid set.
type DomainValidator func(domain string) bool

// Seeder optionally supplies a previously-persisted per-domain performance
// snapshot to seed a freshly registered agent's learning state (§3
// "[DOMAIN] PerformanceSnapshot"). It never restores scheduling state —
// only historical learning.
type Seeder interface {
	SeedDomains(agentID string) map[string]*DomainPerf
}

// Registry holds agent descriptors, skills, status, and live performance
// stats. It is one component of a single engine instance's state.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*Agent
	validDoms DomainValidator
	seeder    Seeder
}

// New creates an empty Registry. validator is consulted on every
// registration; seeder (optional) may be nil.
func New(validator DomainValidator, seeder Seeder) *Registry {
	return &Registry{
		agents:    make(map[string]*Agent),
		validDoms: validator,
		seeder:    seeder,
	}
}

// Register validates and stores a new agent, returning its id. A blank
// Descriptor.ID is filled with a generated UUID.
func (r *Registry) Register(d Descriptor) (string, error) {
	if len(d.DomainLabels) == 0 {
		return "", errs.New(errs.KindInvalidAgent, "domainLabels must be non-empty")
	}
	for _, dom := range d.DomainLabels {
		if r.validDoms != nil && !r.validDoms(dom) {
			return "", errs.New(errs.KindInvalidAgent, "domain %q is not a configured valid domain", dom)
		}
	}
	if d.SkillScores == nil {
		return "", errs.New(errs.KindInvalidAgent, "skillScores must be a scalar-valued mapping")
	}
	for dom, score := range d.SkillScores {
		_ = dom
		if math.IsNaN(score) || math.IsInf(score, 0) { // a scalar-valued mapping must be finite
			return "", errs.New(errs.KindInvalidAgent, "skillScores contains a non-numeric value")
		}
	}
	if d.APIEndpoint == "" {
		return "", errs.New(errs.KindInvalidAgent, "apiEndpoint is required")
	}
	if d.Performance == nil {
		return "", errs.New(errs.KindInvalidAgent, "performanceData is required")
	}

	id := d.ID
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if _, exists := r.agents[id]; exists {
			return "", errs.New(errs.KindInvalidAgent, "agent id %q already registered", id)
		}
	} else {
		id = uuid.NewString()
	}

	perf := d.Performance
	if perf.Domains == nil {
		perf.Domains = make(map[string]*DomainPerf)
	}
	if r.seeder != nil {
		for dom, dp := range r.seeder.SeedDomains(id) {
			if _, exists := perf.Domains[dom]; !exists {
				perf.Domains[dom] = dp
			}
		}
	}

	r.agents[id] = &Agent{
		ID:           id,
		DomainLabels: append([]string(nil), d.DomainLabels...),
		SkillScores:  copyScores(d.SkillScores),
		APIEndpoint:  d.APIEndpoint,
		Status:       StatusIdle,
		Perf:         perf,
		RegisteredAt: time.Now(),
	}
	return id, nil
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Get returns a defensive copy of the agent by id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return clone(a), true
}

// List returns defensive copies of every registered agent.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, clone(a))
	}
	return out
}

// MarkBusy transitions an idle agent to busy.
func (r *Registry) MarkBusy(id string) error {
	return r.setStatus(id, StatusBusy)
}

// MarkIdle transitions a busy agent back to idle.
func (r *Registry) MarkIdle(id string) error {
	return r.setStatus(id, StatusIdle)
}

func (r *Registry) setStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return errs.New(errs.KindUnknownAgent, "agent %q not found", id)
	}
	a.Status = status
	return nil
}

// Mutate runs fn against the live agent under the registry's lock, for
// learning updates that must be serialized with status transitions.
func (r *Registry) Mutate(id string, fn func(a *Agent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return errs.New(errs.KindUnknownAgent, "agent %q not found", id)
	}
	fn(a)
	return nil
}

// IdleAgents returns defensive copies of every agent currently idle.
func (r *Registry) IdleAgents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Agent
	for _, a := range r.agents {
		if a.Status == StatusIdle {
			out = append(out, clone(a))
		}
	}
	return out
}
