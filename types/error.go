package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

const (
	// ErrNotInitialized is returned when the coordinator is used before Initialize.
	ErrNotInitialized ErrorCode = "NOT_INITIALIZED"
	// ErrWorkflowNotFound is returned when a workflow id is unknown.
	ErrWorkflowNotFound ErrorCode = "WORKFLOW_NOT_FOUND"
	// ErrExecutionFailed wraps any step or node handler failure.
	ErrExecutionFailed ErrorCode = "EXECUTION_FAILED"
	// ErrInvalidGraphStructure reports a graph with no entry nodes or a cycle.
	ErrInvalidGraphStructure ErrorCode = "INVALID_GRAPH_STRUCTURE"
	// ErrNodeNotFound reports a scheduled node id absent from the node list.
	ErrNodeNotFound ErrorCode = "NODE_NOT_FOUND"
	// ErrInvalidConfiguration reports a malformed workflow, step, or node configuration.
	ErrInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	// ErrExecutionTimeout reports that the workflow's configured timeout expired.
	ErrExecutionTimeout ErrorCode = "EXECUTION_TIMEOUT"
)

// Error represents a structured error with code, message, and an optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error.
// Returns the empty code for non-flowmesh errors.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is a flowmesh error carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
