package engine

import (
	"fmt"
	"strings"
	"time"
)

// ToolNotFoundError indicates a step named a tool missing from the registry.
// Tool absence is always a blocking failure: the run halts.
type ToolNotFoundError struct {
	Tool      string    // Name the step asked for
	Step      string    // Description of the step that failed dispatch
	Timestamp time.Time // When dispatch failed
}

// NewToolNotFoundError creates a ToolNotFoundError with the current timestamp.
func NewToolNotFoundError(toolName, stepDescription string) *ToolNotFoundError {
	return &ToolNotFoundError{
		Tool:      toolName,
		Step:      stepDescription,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface.
func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found for step %q", e.Tool, e.Step)
}

// MissingParameterError indicates a step omitted required tool parameters.
// Missing parameters are a blocking failure: the run halts.
type MissingParameterError struct {
	Tool      string   // Tool whose schema was violated
	Step      string   // Description of the failing step
	Missing   []string // Names of the absent required parameters
	Timestamp time.Time
}

// NewMissingParameterError creates a MissingParameterError with the current timestamp.
func NewMissingParameterError(toolName, stepDescription string, missing []string) *MissingParameterError {
	return &MissingParameterError{
		Tool:      toolName,
		Step:      stepDescription,
		Missing:   missing,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("step %q is missing required parameters for %s: %s",
		e.Step, e.Tool, strings.Join(e.Missing, ", "))
}

// StepExecutionError wraps a tool execution failure with step context.
type StepExecutionError struct {
	Step      string // Description of the failing step
	Tool      string
	Err       error
	Timestamp time.Time
}

// NewStepExecutionError creates a StepExecutionError with the current timestamp.
func NewStepExecutionError(stepDescription, toolName string, err error) *StepExecutionError {
	return &StepExecutionError{
		Step:      stepDescription,
		Tool:      toolName,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface.
func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed in %s: %v", e.Step, e.Tool, e.Err)
}

// Unwrap returns the underlying tool error.
func (e *StepExecutionError) Unwrap() error {
	return e.Err
}
