// Package depgraph detects dependency cycles over the induced subgraph of
// unfinished tasks and computes a diagnostic topological order, grounded on
// the teacher's internal/scheduler/dag.go (aristath-orchestrator).
package depgraph

import (
	"sort"

	"github.com/gammazero/toposort"

	"github.com/loc-core/loc/internal/task"
)

type color int

const (
	white color = iota
	gray
	black
)

// Store is the minimal view depgraph needs of the task store: edges and
// pending-task enumeration.
type Store interface {
	PendingIDs() []string
	DependenciesOf(id string) []string
}

// DetectCycles runs a three-color DFS over the induced subgraph of pending
// (unfinished) tasks and returns the ids of every task that participates
// in a cycle, deduplicated, in no particular order. An empty result means
// the pending subgraph is acyclic.
func DetectCycles(store Store) []string {
	pending := store.PendingIDs()
	deps := make(map[string][]string, len(pending))
	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}
	for _, id := range pending {
		var filtered []string
		for _, d := range store.DependenciesOf(id) {
			if pendingSet[d] {
				filtered = append(filtered, d)
			}
		}
		deps[id] = filtered
	}

	colors := make(map[string]color, len(pending))
	inCycle := make(map[string]bool)
	stack := make([]string, 0, len(pending))

	var visit func(id string)
	visit = func(id string) {
		colors[id] = gray
		stack = append(stack, id)
		for _, d := range deps[id] {
			switch colors[d] {
			case white:
				visit(d)
			case gray:
				// Found a back-edge: everything on the stack from d's
				// first occurrence to the top is part of a cycle.
				markCycle(stack, d, inCycle)
			case black:
				// already fully explored, no cycle through here
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
	}

	// Deterministic iteration order keeps test expectations stable.
	sorted := append([]string(nil), pending...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if colors[id] == white {
			visit(id)
		}
	}

	out := make([]string, 0, len(inCycle))
	for id := range inCycle {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func markCycle(stack []string, from string, inCycle map[string]bool) {
	start := -1
	for i, id := range stack {
		if id == from {
			start = i
			break
		}
	}
	if start == -1 {
		return
	}
	for _, id := range stack[start:] {
		inCycle[id] = true
	}
}

// DiagnosticOrder returns a topological ordering of the pending subgraph
// for operator-facing diagnostics (Status Console, logs), using
// github.com/gammazero/toposort. It is never the authoritative cycle
// detector (see package doc and SPEC_FULL §4.3): a cycle here yields an
// error, which callers should treat as "order unavailable", not as the
// source of truth for which tasks to fail.
func DiagnosticOrder(store Store) ([]string, error) {
	pending := store.PendingIDs()
	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}

	var edges []toposort.Edge
	for _, id := range pending {
		deps := store.DependenciesOf(id)
		var relevant []string
		for _, d := range deps {
			if pendingSet[d] {
				relevant = append(relevant, d)
			}
		}
		if len(relevant) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, d := range relevant {
			edges = append(edges, toposort.Edge{d, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(sorted))
	for _, v := range sorted {
		if v != nil {
			order = append(order, v.(string))
		}
	}
	return order, nil
}

// DependentsOf returns the ids of every task in all whose Dependencies
// intersect failedIDs, used by the scheduler's cascade step (§4.9).
func DependentsOf(all []*task.Task, failedIDs map[string]bool) []string {
	var out []string
	for _, t := range all {
		for _, d := range t.Dependencies {
			if failedIDs[d] {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out
}
