// Package collab implements the Collaboration Bus: a per-context blackboard
// that lets agents assigned to the same collaborative task share partial
// results, ask each other questions, and rendezvous at named sync points,
// plus an append-only audit log of everything that crosses it. The
// question/answer path is grounded on the teacher's
// internal/orchestrator/qa_channel.go, generalized from a single
// orchestrator-answers-everyone channel to per-context routed requests
// between arbitrary agents.
package collab

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loc-core/loc/internal/errs"
)

// EntryKind tags one audit-log entry.
type EntryKind string

const (
	EntryShare   EntryKind = "SHARE"
	EntryRequest EntryKind = "REQUEST"
	EntryAnswer  EntryKind = "ANSWER"
	EntrySync    EntryKind = "SYNC"
)

// Entry is one immutable audit-log record.
type Entry struct {
	At        time.Time
	ContextID string
	AgentID   string
	Kind      EntryKind
	Detail    string
}

// request is a pending question routed to (or broadcast within) a context.
type request struct {
	ID          string
	ContextID   string
	FromAgentID string
	ToAgentID   string // blank: any collaborator in the context may answer
	Content     string
	responseCh  chan answer
	answered    bool
}

type answer struct {
	content string
	err     error
}

// blackboard is one collaborative task's shared state.
type blackboard struct {
	sharedResults map[string]string // agentID -> last shared result
	requests      map[string]*request
	syncPoints    map[string]map[string]bool // label -> set of arrived agent ids
}

func newBlackboard() *blackboard {
	return &blackboard{
		sharedResults: make(map[string]string),
		requests:      make(map[string]*request),
		syncPoints:    make(map[string]map[string]bool),
	}
}

// Bus is the engine-wide Collaboration Bus. One Bus instance is part of a
// single engine's state; contexts are created lazily on first use and
// never pruned automatically — callers should call Close(contextID) once a
// collaborative task and all its collaborators have completed.
type Bus struct {
	mu     sync.Mutex
	boards map[string]*blackboard
	audit  []Entry
}

// New creates an empty Collaboration Bus.
func New() *Bus {
	return &Bus{boards: make(map[string]*blackboard)}
}

func (b *Bus) board(contextID string) *blackboard {
	bb, ok := b.boards[contextID]
	if !ok {
		bb = newBlackboard()
		b.boards[contextID] = bb
	}
	return bb
}

func (b *Bus) record(contextID, agentID string, kind EntryKind, detail string) {
	b.audit = append(b.audit, Entry{At: time.Now(), ContextID: contextID, AgentID: agentID, Kind: kind, Detail: detail})
}

// Share posts agentID's partial result to contextID's blackboard, visible
// to every collaborator who later calls Snapshot.
func (b *Bus) Share(contextID, agentID, result string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.board(contextID).sharedResults[agentID] = result
	b.record(contextID, agentID, EntryShare, result)
}

// Snapshot returns a defensive copy of every result shared so far in
// contextID, keyed by the sharing agent's id.
func (b *Bus) Snapshot(contextID string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	bb, ok := b.boards[contextID]
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(bb.sharedResults))
	for k, v := range bb.sharedResults {
		out[k] = v
	}
	return out
}

// RequestInput posts a question from fromAgentID within contextID and
// blocks until AnswerRequest delivers a reply or ctx is cancelled.
// toAgentID may be blank to leave the question open to any collaborator.
func (b *Bus) RequestInput(ctx context.Context, contextID, fromAgentID, toAgentID, content string) (string, error) {
	req := &request{
		ID:          uuid.NewString(),
		ContextID:   contextID,
		FromAgentID: fromAgentID,
		ToAgentID:   toAgentID,
		Content:     content,
		responseCh:  make(chan answer, 1),
	}

	b.mu.Lock()
	b.board(contextID).requests[req.ID] = req
	b.record(contextID, fromAgentID, EntryRequest, content)
	b.mu.Unlock()

	select {
	case a := <-req.responseCh:
		return a.content, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PendingRequests returns the open (unanswered) requests in contextID that
// agentID is eligible to answer (addressed to it, or broadcast).
func (b *Bus) PendingRequests(contextID, agentID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	bb, ok := b.boards[contextID]
	if !ok {
		return nil
	}
	var out []string
	for _, r := range bb.requests {
		if r.answered {
			continue
		}
		if r.ToAgentID == "" || r.ToAgentID == agentID {
			out = append(out, r.ID)
		}
	}
	return out
}

// AnswerRequest delivers a reply to a previously posted request, waking
// the blocked RequestInput caller.
func (b *Bus) AnswerRequest(contextID, requestID, agentID, content string, err error) error {
	b.mu.Lock()
	bb, ok := b.boards[contextID]
	if !ok {
		b.mu.Unlock()
		return errs.New(errs.KindUnknownTask, "collaboration context %q not found", contextID)
	}
	req, ok := bb.requests[requestID]
	if !ok || req.answered {
		b.mu.Unlock()
		return errs.New(errs.KindUnknownTask, "request %q not found or already answered", requestID)
	}
	req.answered = true
	b.record(contextID, agentID, EntryAnswer, content)
	b.mu.Unlock()

	req.responseCh <- answer{content: content, err: err}
	return nil
}

// Sync marks agentID as arrived at the named barrier within contextID and
// returns the set of everyone who has arrived at it so far (including this
// call). Callers decide readiness by comparing the returned set against
// their own list of expected collaborators.
func (b *Bus) Sync(contextID, label, agentID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	bb := b.board(contextID)
	arrived, ok := bb.syncPoints[label]
	if !ok {
		arrived = make(map[string]bool)
		bb.syncPoints[label] = arrived
	}
	arrived[agentID] = true
	b.record(contextID, agentID, EntrySync, label)

	out := make([]string, 0, len(arrived))
	for id := range arrived {
		out = append(out, id)
	}
	return out
}

// AuditLog returns a defensive copy of every entry recorded across all
// contexts, oldest first.
func (b *Bus) AuditLog() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.audit...)
}

// Close discards a context's blackboard once its collaborative task and
// every collaborator have finished. The audit log is unaffected.
func (b *Bus) Close(contextID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.boards, contextID)
}
