// Package resource implements the ResourceArbiter: named resources with
// exclusive or parallel(capacity) semantics and all-or-nothing lease
// acquisition, grounded on the teacher's per-file ResourceLockManager
// (internal/scheduler/locks.go in aristath-orchestrator) generalized from
// binary file locks to capacity-bounded leases.
package resource

import (
	"sort"
	"sync"

	"github.com/loc-core/loc/internal/task"
)

// Mode is re-exported from task for caller convenience.
type Mode = task.ResourceMode

const (
	Exclusive = task.ResourceExclusive
	Parallel  = task.ResourceParallel
)

// Descriptor describes a single named resource.
type Descriptor struct {
	ID           string
	Mode         Mode
	Capacity     int // 1 for exclusive
	CurrentUsage int
	Holders      map[string]bool // task id -> held
}

// Arbiter leases named resources to tasks under exclusive or parallel(k)
// semantics. A single Arbiter instance is part of one engine's state.
type Arbiter struct {
	mu        sync.Mutex
	resources map[string]*Descriptor
}

// New creates an empty Arbiter.
func New() *Arbiter {
	return &Arbiter{resources: make(map[string]*Descriptor)}
}

// Register declares a named resource. capacity is forced to 1 for
// exclusive mode regardless of the value passed.
func (a *Arbiter) Register(id string, mode Mode, capacity int) {
	if mode == Exclusive {
		capacity = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.resources[id]; exists {
		return
	}
	a.resources[id] = &Descriptor{
		ID:       id,
		Mode:     mode,
		Capacity: capacity,
		Holders:  make(map[string]bool),
	}
}

// TryAcquire attempts to acquire every resource in requirements for taskID,
// atomically: either all are granted or none are. Unregistered resource ids
// are auto-registered on first reference with the requested mode and
// capacity 1, matching the
// teacher's lazy per-file mutex creation in LockAll.
func (a *Arbiter) TryAcquire(taskID string, requirements map[string]Mode) bool {
	if len(requirements) == 0 {
		return true
	}

	ids := make([]string, 0, len(requirements))
	for id := range requirements {
		ids = append(ids, id)
	}
	sort.Strings(ids) // fixed lock order across all callers avoids deadlock

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range ids {
		d, ok := a.resources[id]
		if !ok {
			d = &Descriptor{ID: id, Mode: requirements[id], Capacity: 1, Holders: make(map[string]bool)}
			if requirements[id] == Parallel {
				d.Capacity = 1
			}
			a.resources[id] = d
		}
		if d.Holders[taskID] {
			continue // already held by this task
		}
		if d.CurrentUsage >= d.Capacity {
			return false // all-or-nothing: bail before granting any
		}
	}

	for _, id := range ids {
		d := a.resources[id]
		if d.Holders[taskID] {
			continue
		}
		d.Holders[taskID] = true
		d.CurrentUsage++
	}
	return true
}

// Release drops every lease taskID holds. Safe to call even if the task
// holds nothing.
func (a *Arbiter) Release(taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.resources {
		if d.Holders[taskID] {
			delete(d.Holders, taskID)
			d.CurrentUsage--
		}
	}
}

// Snapshot returns a defensive copy of every registered resource's state,
// used by the Status Console and tests.
func (a *Arbiter) Snapshot() []Descriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Descriptor, 0, len(a.resources))
	for _, d := range a.resources {
		cp := *d
		cp.Holders = make(map[string]bool, len(d.Holders))
		for k, v := range d.Holders {
			cp.Holders[k] = v
		}
		out = append(out, cp)
	}
	return out
}
