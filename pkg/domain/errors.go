package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrToolNotFound is returned when a model requests a tool that is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrStepLimit is returned when a run exceeds the engine's step budget
// without reaching the terminal node.
var ErrStepLimit = errors.New("step limit exceeded")

// ConfigError reports invalid advance input. It is raised before any node
// executes and before any checkpoint is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// StepError reports a failed node execution. The checkpoint store still
// holds the last successfully committed state; the session remains
// resumable by retrying the same advance call.
type StepError struct {
	SessionID string
	Node      Node
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("session %s: node %s failed: %v", e.SessionID, e.Node, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
