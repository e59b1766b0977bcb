package agent

import "testing"

func allDomains(domain string) bool { return true }

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{
			name: "valid agent",
			desc: Descriptor{
				DomainLabels: []string{"backend"},
				SkillScores:  map[string]float64{"backend": 7},
				APIEndpoint:  "http://localhost:9000",
				Performance:  NewPerformanceStats(),
			},
		},
		{
			name: "missing domains",
			desc: Descriptor{
				SkillScores: map[string]float64{"backend": 7},
				APIEndpoint: "http://localhost:9000",
				Performance: NewPerformanceStats(),
			},
			wantErr: true,
		},
		{
			name: "missing skill scores",
			desc: Descriptor{
				DomainLabels: []string{"backend"},
				APIEndpoint:  "http://localhost:9000",
				Performance:  NewPerformanceStats(),
			},
			wantErr: true,
		},
		{
			name: "missing endpoint",
			desc: Descriptor{
				DomainLabels: []string{"backend"},
				SkillScores:  map[string]float64{"backend": 7},
				Performance:  NewPerformanceStats(),
			},
			wantErr: true,
		},
		{
			name: "missing performance stats",
			desc: Descriptor{
				DomainLabels: []string{"backend"},
				SkillScores:  map[string]float64{"backend": 7},
				APIEndpoint:  "http://localhost:9000",
			},
			wantErr: true,
		},
		{
			name: "nan skill score",
			desc: Descriptor{
				DomainLabels: []string{"backend"},
				SkillScores:  map[string]float64{"backend": nan()},
				APIEndpoint:  "http://localhost:9000",
				Performance:  NewPerformanceStats(),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(allDomains, nil)
			_, err := reg.Register(tt.desc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestRegisterDuplicateID(t *testing.T) {
	reg := New(allDomains, nil)
	desc := Descriptor{
		ID:           "fixed-agent",
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 5},
		APIEndpoint:  "http://localhost:9000",
		Performance:  NewPerformanceStats(),
	}
	if _, err := reg.Register(desc); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := reg.Register(desc); err == nil {
		t.Fatal("expected INVALID_AGENT registering duplicate id")
	}
}

func TestRegisterStartsIdleWithZeroedRollups(t *testing.T) {
	reg := New(allDomains, nil)
	id, err := reg.Register(Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 5},
		APIEndpoint:  "http://localhost:9000",
		Performance:  NewPerformanceStats(),
	})
	if err != nil {
		t.Fatal(err)
	}
	a, ok := reg.Get(id)
	if !ok {
		t.Fatal("expected agent to exist")
	}
	if a.Status != StatusIdle {
		t.Fatalf("expected idle status, got %v", a.Status)
	}
	if a.Perf.TasksCompleted != 0 {
		t.Fatalf("expected zeroed rollups, got %+v", a.Perf)
	}
}

func TestMarkBusyMarkIdle(t *testing.T) {
	reg := New(allDomains, nil)
	id, _ := reg.Register(Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 5},
		APIEndpoint:  "http://localhost:9000",
		Performance:  NewPerformanceStats(),
	})

	if err := reg.MarkBusy(id); err != nil {
		t.Fatal(err)
	}
	a, _ := reg.Get(id)
	if a.Status != StatusBusy {
		t.Fatalf("expected busy, got %v", a.Status)
	}

	if err := reg.MarkIdle(id); err != nil {
		t.Fatal(err)
	}
	a, _ = reg.Get(id)
	if a.Status != StatusIdle {
		t.Fatalf("expected idle, got %v", a.Status)
	}
}

func TestMarkBusyUnknownAgent(t *testing.T) {
	reg := New(allDomains, nil)
	if err := reg.MarkBusy("missing"); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestIdleAgentsExcludesBusy(t *testing.T) {
	reg := New(allDomains, nil)
	id1, _ := reg.Register(Descriptor{DomainLabels: []string{"backend"}, SkillScores: map[string]float64{"backend": 5}, APIEndpoint: "e1", Performance: NewPerformanceStats()})
	id2, _ := reg.Register(Descriptor{DomainLabels: []string{"backend"}, SkillScores: map[string]float64{"backend": 5}, APIEndpoint: "e2", Performance: NewPerformanceStats()})

	_ = reg.MarkBusy(id1)

	idle := reg.IdleAgents()
	if len(idle) != 1 || idle[0].ID != id2 {
		t.Fatalf("expected only %s idle, got %v", id2, idle)
	}
}

type seederStub struct {
	domains map[string]*DomainPerf
}

func (s seederStub) SeedDomains(agentID string) map[string]*DomainPerf { return s.domains }

func TestRegisterSeedsFromSeeder(t *testing.T) {
	seed := seederStub{domains: map[string]*DomainPerf{
		"backend": {TasksCompleted: 10, SuccessRate: 0.9},
	}}
	reg := New(allDomains, seed)

	id, err := reg.Register(Descriptor{
		DomainLabels: []string{"backend"},
		SkillScores:  map[string]float64{"backend": 5},
		APIEndpoint:  "e1",
		Performance:  NewPerformanceStats(),
	})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := reg.Get(id)
	dp, ok := a.Perf.Domains["backend"]
	if !ok || dp.TasksCompleted != 10 {
		t.Fatalf("expected seeded domain perf, got %+v", a.Perf.Domains)
	}
}

func TestDomainPerfRecordOutcome(t *testing.T) {
	dp := DefaultDomainPerf()
	dp.RecordOutcome(true, 8.0)
	if dp.TasksCompleted != 1 {
		t.Fatalf("expected 1 task completed, got %d", dp.TasksCompleted)
	}
	if dp.AverageImpact != 8.0 {
		t.Fatalf("expected average impact 8.0, got %f", dp.AverageImpact)
	}
	if dp.Uncertainty != 0.5 {
		t.Fatalf("expected uncertainty 0.5, got %f", dp.Uncertainty)
	}

	dp.RecordOutcome(false, 0)
	if dp.TasksCompleted != 2 {
		t.Fatalf("expected 2 tasks completed, got %d", dp.TasksCompleted)
	}
	if dp.AverageImpact != 8.0 {
		t.Fatalf("expected average impact unchanged by a failure, got %f", dp.AverageImpact)
	}
}
