package domain

import (
	"errors"
	"fmt"
)

// ToolErrorKind classifies tool invocation failures.
type ToolErrorKind string

const (
	ToolErrTransientExhausted ToolErrorKind = "transient_exhausted"
	ToolErrPermanent          ToolErrorKind = "permanent"
	ToolErrTimeout            ToolErrorKind = "timeout"
)

// ToolInvocationError is raised by the tool invoker when a live call cannot
// produce a response. Callers translate it into a degraded artifact or a
// stage failure; it is never silently swallowed.
type ToolInvocationError struct {
	Kind     ToolErrorKind
	Tool     string
	Attempts int
	Err      error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %s after %d attempt(s): %v", e.Tool, e.Kind, e.Attempts, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// ConfigurationError rejects invalid rosters or parameters before any stage
// starts. It is never retried.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Msg)
}

// StageFailure reports that a stage could not produce the artifact the next
// stage requires.
type StageFailure struct {
	Stage Stage
	Msg   string
	Err   error
}

func (e *StageFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s failed: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Msg)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// transientError marks a failure as retryable. Vendor adapters wrap
// timeouts, rate limits and 5xx-equivalent failures with Transient; the
// tool invoker treats everything else as permanent.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as a transiently-classified failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Sentinel control-flow errors for the session lifecycle.
var (
	ErrSessionTimeout  = errors.New("session_timeout")
	ErrCancelled       = errors.New("cancellation_requested")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionTerminal = errors.New("session already in terminal state")
)

// FailureKind maps a terminal error to the kind string carried by
// session_failed events.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrSessionTimeout):
		return "session_timeout"
	case errors.Is(err, ErrCancelled):
		return "cancellation_requested"
	default:
		var cfg *ConfigurationError
		if errors.As(err, &cfg) {
			return "configuration_error"
		}
		var sf *StageFailure
		if errors.As(err, &sf) {
			return "stage_failure"
		}
		var te *ToolInvocationError
		if errors.As(err, &te) {
			return string(te.Kind)
		}
		return "internal_error"
	}
}
