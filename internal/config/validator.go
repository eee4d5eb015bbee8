package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "executor.timeout_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Upper bounds that catch unit mistakes such as seconds written as minutes.
const (
	maxConcurrency = 1024
	maxTimeoutMs   = 24 * 60 * 60 * 1000
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateExecutor()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateProject()...)

	return errors
}

func (c *Config) validateExecutor() []ValidationError {
	var errors []ValidationError

	// 0 selects the hardware parallelism
	if c.Executor.MaxConcurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_concurrency",
			Value:   c.Executor.MaxConcurrency,
			Message: "must be non-negative",
		})
	}
	if c.Executor.MaxConcurrency > maxConcurrency {
		errors = append(errors, ValidationError{
			Field:   "executor.max_concurrency",
			Value:   c.Executor.MaxConcurrency,
			Message: fmt.Sprintf("exceeds maximum of %d", maxConcurrency),
		})
	}

	if c.Executor.TimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.timeout_ms",
			Value:   c.Executor.TimeoutMs,
			Message: "must be positive",
		})
	}
	if c.Executor.TimeoutMs > maxTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   "executor.timeout_ms",
			Value:   c.Executor.TimeoutMs,
			Message: "exceeds maximum of 24 hours",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if strings.ContainsRune(c.Logging.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.dir",
			Value:   c.Logging.Dir,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	// The address is only used when metrics are served
	if !c.Metrics.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be a host:port listen address",
		})
	}

	return errors
}

func (c *Config) validateProject() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Project.Root) == "" {
		errors = append(errors, ValidationError{
			Field:   "project.root",
			Value:   c.Project.Root,
			Message: "must not be empty",
		})
	}
	if strings.ContainsRune(c.Project.Root, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "project.root",
			Value:   c.Project.Root,
			Message: "path contains invalid null character",
		})
	}

	return errors
}
