// Command loc-engine wires a demo in-memory Dispatcher, the orchestration
// Engine, and a live status console together, grounded on the teacher's
// cmd/orchestrator/main.go (aristath-orchestrator): signal-aware startup,
// Bubble Tea program run in a goroutine, graceful drain-then-quit
// shutdown on Ctrl+C/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/config"
	"github.com/loc-core/loc/internal/loc"
	"github.com/loc-core/loc/internal/task"
	"github.com/loc-core/loc/internal/tui"
)

var demoAgents = []struct {
	domains []string
	skills  map[string]float64
}{
	{domains: []string{"backend", "infra"}, skills: map[string]float64{"backend": 8, "infra": 6}},
	{domains: []string{"frontend"}, skills: map[string]float64{"frontend": 7}},
	{domains: []string{"data", "testing"}, skills: map[string]float64{"data": 9, "testing": 5}},
	{domains: []string{"general", "testing"}, skills: map[string]float64{"general": 4, "testing": 6}},
}

var demoTasks = []task.Spec{
	{Description: "migrate user table to new schema", DomainLabel: "data", ComplexityScore: 6, Priority: 5},
	{Description: "fix flaky login redirect test", DomainLabel: "frontend", ComplexityScore: 3, Priority: 3},
	{Description: "design multi-region failover strategy", DomainLabel: "infra", ComplexityScore: 9, Priority: 8},
	{Description: "write integration tests for billing", DomainLabel: "testing", ComplexityScore: 4, Priority: 2},
	{Description: "draft onboarding doc", DomainLabel: "general", ComplexityScore: 2, Priority: 1},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting home directory: %v\n", err)
		os.Exit(1)
	}
	globalPath := filepath.Join(homeDir, ".loc", "config.json")
	projectPath := filepath.Join(".loc", "config.json")

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	var eng *loc.Engine
	dispatcher := newDemoDispatcher(func(agentID, domain string) float64 {
		if eng == nil {
			return 5
		}
		a, ok := eng.Agents.Get(agentID)
		if !ok {
			return 5
		}
		if s, ok := a.SkillScores[domain]; ok {
			return s
		}
		return 0.7 * a.MeanSkill()
	})

	eng, err = loc.New(ctx, cfg, dispatcher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error constructing engine: %v\n", err)
		os.Exit(1)
	}

	seedDemoAgents(eng)
	seedDemoTasks(eng)

	eng.Start(ctx)

	model := tui.New(eng.Events)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		stop()
		log.Println("shutdown signal received, draining in-flight dispatches...")
		p.Quit()

		select {
		case <-errChan:
		case <-time.After(10 * time.Second):
			log.Println("tui shutdown timeout exceeded, forcing exit")
		}
	}

	if err := eng.Stop(10 * time.Second); err != nil {
		log.Printf("engine shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}

func seedDemoAgents(eng *loc.Engine) {
	for i, spec := range demoAgents {
		_, err := eng.RegisterAgent(agent.Descriptor{
			DomainLabels: spec.domains,
			SkillScores:  spec.skills,
			APIEndpoint:  fmt.Sprintf("demo://agent-%d", i),
			Performance:  agent.NewPerformanceStats(),
		})
		if err != nil {
			log.Printf("seeding demo agent %d failed: %v", i, err)
		}
	}
}

func seedDemoTasks(eng *loc.Engine) {
	for _, spec := range demoTasks {
		if _, err := eng.Submit(spec); err != nil {
			log.Printf("seeding demo task %q failed: %v", spec.Description, err)
		}
	}
}
