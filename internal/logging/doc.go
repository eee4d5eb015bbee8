// Package logging provides structured logging for ricecoder orchestration runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Every record can carry the run ID, the execution phase
// index and the task being executed, so the log of a run with many concurrent
// workers can be filtered after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers created
// via With* methods share the underlying handler and file.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID)
//	runLogger.WithPhase(0).WithTask("lint", "todo-scan").Info("task finished", "duration_ms", 150)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"task finished","run_id":"...","phase":0,"task_id":"lint","kind":"todo-scan","duration_ms":150}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a bytes.Buffer
// to assert on emitted records.
package logging
