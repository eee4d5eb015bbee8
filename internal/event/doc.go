// Package event provides a synchronous pub-sub bus that reports the progress
// of an orchestration run.
//
// The orchestrator and executor publish events; the CLI, metrics and tests
// subscribe to them. Neither side needs to know about the other.
//
// # Event Categories
//
// Run:
//   - [RunStartedEvent]: the graph was planned and execution begins
//   - [RunCompletedEvent]: every phase finished, or the run was canceled
//
// Phase:
//   - [PhaseStartedEvent], [PhaseCompletedEvent]
//
// Task:
//   - [TaskStartedEvent]: a task acquired a concurrency slot
//   - [TaskCompletedEvent]: a task produced its result (success, failure,
//     timeout or panic)
//
// Conflicts:
//   - [ConflictsDetectedEvent]: recommendation conflict detection finished
//
// # Thread Safety
//
// Publish may be called from many goroutines at once; task events are
// published from executor workers. Handlers run on the publishing goroutine,
// so a handler shared by several event types must guard its own state.
package event
