package schema

import "fmt"

// Error codes for structured error reporting. The parser core is total over
// string inputs and never produces errors; these codes exist for the serving
// edges (store, filters, rendering, MCP).
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeFilter     = "FILTER_ERROR"
	ErrCodeRender     = "RENDER_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeStore      = "STORE_ERROR"
)

// DeliverableError is the structured error type for all deliverable operations.
type DeliverableError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DeliverableError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DeliverableError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DeliverableError.
func NewError(code, message string) *DeliverableError {
	return &DeliverableError{Code: code, Message: message}
}

// NewErrorf creates a new DeliverableError with a formatted message.
func NewErrorf(code, format string, args ...any) *DeliverableError {
	return &DeliverableError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *DeliverableError) WithCause(err error) *DeliverableError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DeliverableError) WithDetails(details map[string]any) *DeliverableError {
	e.Details = details
	return e
}
