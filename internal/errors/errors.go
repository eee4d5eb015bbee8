// Package errors provides centralized error definitions and error handling utilities
// for the ricecoder orchestration engine. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - GraphError: task graph construction and phase planning (duplicate ids,
//     unknown tasks, dependency cycles)
//   - TaskError: a single task's execution failure, captured by the executor
//   - ConfigError: invalid executor or application configuration
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewGraphError("cannot add dependency", errors.ErrUnknownTask).WithTaskIDs("build")
//	err := errors.NewTimeoutError("task lint", 30*time.Second)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var graphErr *errors.GraphError
//	if errors.As(err, &graphErr) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Fatal: structural or configuration errors that abort a run before execution
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Graph-related sentinel errors
var (
	// ErrDuplicateTaskID indicates that a task id is already present in the graph.
	ErrDuplicateTaskID = New("duplicate task id")
	// ErrUnknownTask indicates that a referenced task id is not in the graph.
	ErrUnknownTask = New("unknown task")
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrInvalidTask indicates that a task is structurally invalid (e.g. empty id).
	ErrInvalidTask = New("invalid task")
	// ErrGraphFrozen indicates a mutation was attempted after phases were computed.
	ErrGraphFrozen = New("graph is frozen")
)

// Execution-related sentinel errors
var (
	// ErrInvalidConfig indicates an invalid executor configuration.
	ErrInvalidConfig = New("invalid configuration")
	// ErrUnknownAgent indicates that no agent is registered for a task kind.
	ErrUnknownAgent = New("no agent registered for task kind")
	// ErrAgentExists indicates that an agent is already registered for a kind.
	ErrAgentExists = New("agent already registered")
	// ErrWorkerPanic indicates that a worker panicked while running a task.
	ErrWorkerPanic = New("worker panicked")
	// ErrTaskFailed indicates that a task execution failed.
	ErrTaskFailed = New("task failed")
)

// Aggregation and input sentinel errors
var (
	// ErrMalformedOutput indicates a structurally invalid agent output.
	ErrMalformedOutput = New("malformed agent output")
	// ErrInvalidPlan indicates that a plan file could not be turned into a graph.
	ErrInvalidPlan = New("invalid plan")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
	fatal    bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsFatal reports whether the error aborts a run before any task executes.
func (e *baseError) IsFatal() bool {
	return e.fatal
}

// formatPrefixed renders "<prefix> [k=v, ...]: message: cause".
func (e *baseError) formatPrefixed(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GraphError represents errors raised while building a task graph or computing
// its execution phases. Graph errors are always fatal to the run.
//
// Example:
//
//	err := errors.NewGraphError("cannot compute phases", errors.ErrDependencyCycle).WithTaskIDs("a", "b")
//	fmt.Println(err) // "graph error [tasks=a,b]: cannot compute phases: dependency cycle detected"
type GraphError struct {
	baseError
	TaskIDs []string
}

// NewGraphError creates a new GraphError.
func NewGraphError(message string, cause error) *GraphError {
	return &GraphError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			fatal:    true,
		},
	}
}

// WithTaskIDs records the task ids involved in the failure.
func (e *GraphError) WithTaskIDs(ids ...string) *GraphError {
	e.TaskIDs = append(e.TaskIDs, ids...)
	return e
}

// Error returns the formatted error message.
func (e *GraphError) Error() string {
	var parts []string
	if len(e.TaskIDs) > 0 {
		parts = append(parts, fmt.Sprintf("tasks=%s", strings.Join(e.TaskIDs, ",")))
	}
	return e.formatPrefixed("graph error", parts)
}

// Is checks if this error matches the target.
func (e *GraphError) Is(target error) bool {
	if _, ok := target.(*GraphError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TaskError represents the failure of a single task's unit of work.
// Task errors are never fatal: the executor turns them into result data.
//
// Example:
//
//	err := errors.NewTaskError("worker failed", cause).WithTaskID("lint").WithKind("todo-scan")
type TaskError struct {
	baseError
	TaskID string
	Kind   string
	Phase  int
}

// NewTaskError creates a new TaskError.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
		Phase: -1,
	}
}

// WithTaskID adds a task ID to the error context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// WithKind adds the task kind to the error context.
func (e *TaskError) WithKind(kind string) *TaskError {
	e.Kind = kind
	return e
}

// WithPhase adds the execution phase index to the error context.
func (e *TaskError) WithPhase(idx int) *TaskError {
	e.Phase = idx
	return e
}

// WithSeverity sets the error severity.
func (e *TaskError) WithSeverity(s Severity) *TaskError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", e.Kind))
	}
	if e.Phase >= 0 {
		parts = append(parts, fmt.Sprintf("phase=%d", e.Phase))
	}
	return e.formatPrefixed("task error", parts)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigError represents an invalid configuration value.
//
// Example:
//
//	err := errors.NewConfigError("max_concurrency", 0, "must be positive")
type ConfigError struct {
	baseError
	Field string
	Value any
}

// NewConfigError creates a new ConfigError wrapping ErrInvalidConfig.
func NewConfigError(field string, value any, message string) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:  message,
			cause:    ErrInvalidConfig,
			severity: SeverityError,
			fatal:    true,
		},
		Field: field,
		Value: value,
	}
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s (got: %v)", e.Field, e.message, e.Value)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("findings must not be nil").WithField("outputs[2]")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			cause:    ErrInvalidInput,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause replaces the cause of the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	if e.cause != nil && e.cause != ErrInvalidInput {
		sb.WriteString(fmt.Sprintf(": %v", e.cause))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("task lint", 30*time.Second)
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:  fmt.Sprintf("%s timed out after %v", operation, duration),
			cause:    ErrTimeout,
			severity: SeverityWarning,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal reports whether err aborts a run before any task executes.
// Graph and configuration errors are fatal; per-task errors are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var f interface{ IsFatal() bool }
	if errors.As(err, &f) {
		return f.IsFatal()
	}
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrDependencyCycle)
}

// IsTimeout reports whether err is, or wraps, a timeout.
func IsTimeout(err error) bool {
	return err != nil && errors.Is(err, ErrTimeout)
}

// GetSeverity returns the severity carried by err, or SeverityError for
// errors that do not carry one.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var s interface{ Severity() Severity }
	if errors.As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// Wrap annotates err with a message, preserving the chain for errors.Is/As.
// Returns nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
