package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier such as "task.completed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeRunStarted        = "run.started"
	TypeRunCompleted      = "run.completed"
	TypePhaseStarted      = "phase.started"
	TypePhaseCompleted    = "phase.completed"
	TypeTaskStarted       = "task.started"
	TypeTaskCompleted     = "task.completed"
	TypeConflictsDetected = "conflicts.detected"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once the graph has been planned.
type RunStartedEvent struct {
	baseEvent
	RunID      string
	TaskCount  int
	PhaseCount int
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, taskCount, phaseCount int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:  newBaseEvent(TypeRunStarted),
		RunID:      runID,
		TaskCount:  taskCount,
		PhaseCount: phaseCount,
	}
}

// RunCompletedEvent is emitted after the last phase, or after cancellation.
type RunCompletedEvent struct {
	baseEvent
	RunID     string
	Succeeded int
	Failed    int
	Duration  time.Duration
	Canceled  bool
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, succeeded, failed int, duration time.Duration, canceled bool) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent(TypeRunCompleted),
		RunID:     runID,
		Succeeded: succeeded,
		Failed:    failed,
		Duration:  duration,
		Canceled:  canceled,
	}
}

// -----------------------------------------------------------------------------
// Phase Events
// -----------------------------------------------------------------------------

// PhaseStartedEvent is emitted before a phase's tasks are dispatched.
type PhaseStartedEvent struct {
	baseEvent
	RunID   string
	Index   int
	TaskIDs []string
}

// NewPhaseStartedEvent creates a PhaseStartedEvent.
func NewPhaseStartedEvent(runID string, index int, taskIDs []string) PhaseStartedEvent {
	return PhaseStartedEvent{
		baseEvent: newBaseEvent(TypePhaseStarted),
		RunID:     runID,
		Index:     index,
		TaskIDs:   taskIDs,
	}
}

// PhaseCompletedEvent is emitted once every task of a phase has a result.
type PhaseCompletedEvent struct {
	baseEvent
	RunID     string
	Index     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(runID string, index, succeeded, failed int, duration time.Duration) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent: newBaseEvent(TypePhaseCompleted),
		RunID:     runID,
		Index:     index,
		Succeeded: succeeded,
		Failed:    failed,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when a task acquires a concurrency slot.
type TaskStartedEvent struct {
	baseEvent
	TaskID string
	Kind   string
	Phase  int
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(taskID, kind string, phase int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent(TypeTaskStarted),
		TaskID:    taskID,
		Kind:      kind,
		Phase:     phase,
	}
}

// TaskCompletedEvent is emitted for every task result, successful or not.
type TaskCompletedEvent struct {
	baseEvent
	TaskID   string
	Kind     string
	Phase    int
	Success  bool
	TimedOut bool
	Error    string // Empty on success
	Duration time.Duration
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(taskID, kind string, phase int, success, timedOut bool, errMsg string, duration time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent(TypeTaskCompleted),
		TaskID:    taskID,
		Kind:      kind,
		Phase:     phase,
		Success:   success,
		TimedOut:  timedOut,
		Error:     errMsg,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Conflict Events
// -----------------------------------------------------------------------------

// ConflictsDetectedEvent is emitted after recommendation conflict detection.
type ConflictsDetectedEvent struct {
	baseEvent
	RunID  string
	Count  int
	ByType map[string]int
}

// NewConflictsDetectedEvent creates a ConflictsDetectedEvent.
func NewConflictsDetectedEvent(runID string, count int, byType map[string]int) ConflictsDetectedEvent {
	return ConflictsDetectedEvent{
		baseEvent: newBaseEvent(TypeConflictsDetected),
		RunID:     runID,
		Count:     count,
		ByType:    byType,
	}
}
