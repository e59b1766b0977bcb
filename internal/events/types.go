package events

import "time"

// Event is the base interface every published event satisfies, grounded on
// the teacher's internal/events/types.go.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants.
const (
	TopicTask        = "task"
	TopicAgent       = "agent"
	TopicResource    = "resource"
	TopicAggregation = "aggregation"
	TopicSystem      = "system"
)

// Event type constants.
const (
	EventTypeTaskSubmitted      = "task.submitted"
	EventTypeTaskAssigned       = "task.assigned"
	EventTypeTaskStarted        = "task.started"
	EventTypeTaskCompleted      = "task.completed"
	EventTypeTaskFailed         = "task.failed"
	EventTypeTaskCycleFailed    = "task.cycle_failed"
	EventTypeTaskRemediated     = "task.remediated"
	EventTypeAgentRegistered    = "agent.registered"
	EventTypeAgentStatusChanged = "agent.status_changed"
	EventTypeResourceContention = "resource.contention"
	EventTypeAggregationDone    = "aggregation.completed"
	EventTypeInterference       = "system.interference_detected"
	EventTypeDiagnosticOrder    = "system.diagnostic_order"
)

// TaskSubmittedEvent is published when a task is accepted into the store.
type TaskSubmittedEvent struct {
	ID        string
	Domain    string
	Timestamp time.Time
}

func (e TaskSubmittedEvent) EventType() string { return EventTypeTaskSubmitted }
func (e TaskSubmittedEvent) TaskID() string    { return e.ID }

// TaskAssignedEvent is published when the scheduler picks an agent for a
// ready task.
type TaskAssignedEvent struct {
	ID               string
	AgentID          string
	PredictedSuccess float64
	Timestamp        time.Time
}

func (e TaskAssignedEvent) EventType() string { return EventTypeTaskAssigned }
func (e TaskAssignedEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when dispatch to the agent begins.
type TaskStartedEvent struct {
	ID        string
	AgentID   string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task reaches StatusCompleted.
type TaskCompletedEvent struct {
	ID              string
	AgentID         string
	ConfidenceScore float64
	ActualImpact    float64
	Duration        time.Duration
	Timestamp       time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task reaches StatusFailed.
type TaskFailedEvent struct {
	ID        string
	AgentID   string
	Reason    string
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskCycleFailedEvent is published once per sweep that finds a dependency
// cycle, naming every participant.
type TaskCycleFailedEvent struct {
	IDs       []string
	Timestamp time.Time
}

func (e TaskCycleFailedEvent) EventType() string { return EventTypeTaskCycleFailed }
func (e TaskCycleFailedEvent) TaskID() string {
	if len(e.IDs) == 0 {
		return ""
	}
	return e.IDs[0]
}

// TaskRemediatedEvent is published when the scheduler applies a
// split/collaborate/reroute remediation to a low-prediction assignment.
type TaskRemediatedEvent struct {
	ID          string
	Remediation string
	Timestamp   time.Time
}

func (e TaskRemediatedEvent) EventType() string { return EventTypeTaskRemediated }
func (e TaskRemediatedEvent) TaskID() string    { return e.ID }

// AgentRegisteredEvent is published when a new agent joins the registry.
type AgentRegisteredEvent struct {
	ID        string
	Domains   []string
	Timestamp time.Time
}

func (e AgentRegisteredEvent) EventType() string { return EventTypeAgentRegistered }
func (e AgentRegisteredEvent) TaskID() string    { return "" }

// AgentStatusChangedEvent is published on every idle/busy transition.
type AgentStatusChangedEvent struct {
	ID        string
	Status    string
	Timestamp time.Time
}

func (e AgentStatusChangedEvent) EventType() string { return EventTypeAgentStatusChanged }
func (e AgentStatusChangedEvent) TaskID() string    { return "" }

// ResourceContentionEvent is published when a ready task cannot acquire
// one of its required resources.
type ResourceContentionEvent struct {
	ResourceID string
	TaskID_    string
	Timestamp  time.Time
}

func (e ResourceContentionEvent) EventType() string { return EventTypeResourceContention }
func (e ResourceContentionEvent) TaskID() string    { return e.TaskID_ }

// AggregationCompletedEvent is published when a parent task's sub-tasks
// have all completed and their results were composed.
type AggregationCompletedEvent struct {
	ParentID   string
	ChildCount int
	Timestamp  time.Time
}

func (e AggregationCompletedEvent) EventType() string { return EventTypeAggregationDone }
func (e AggregationCompletedEvent) TaskID() string    { return e.ParentID }

// InterferenceDetectedEvent describes a prediction that meta-reflection
// discounted for active domain interference. No engine component publishes
// it: reflection.PredictSuccess reports interference only as an
// INTERFERENCE_DETECTED log line.
type InterferenceDetectedEvent struct {
	TaskID_   string
	Domain    string
	Count     int
	Timestamp time.Time
}

func (e InterferenceDetectedEvent) EventType() string { return EventTypeInterference }
func (e InterferenceDetectedEvent) TaskID() string    { return e.TaskID_ }

// DiagnosticOrderEvent carries a topological ordering of the pending
// subgraph, for the Status Console's dependency view. The scheduler
// publishes it on each tick for which an ordering exists; on a tick where
// none exists nothing is published, so the console keeps showing its
// last-known order.
type DiagnosticOrderEvent struct {
	Order     []string
	Timestamp time.Time
}

func (e DiagnosticOrderEvent) EventType() string { return EventTypeDiagnosticOrder }
func (e DiagnosticOrderEvent) TaskID() string    { return "" }
