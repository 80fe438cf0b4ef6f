package domain

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when a record ID cannot be found in a store.
var ErrRecordNotFound = errors.New("record not found")

// ErrNotConnected is returned when an operation requires a live runtime
// connection and none is available.
var ErrNotConnected = errors.New("not connected to runtime")

// Tool call error codes. Local codes never touch the network; the others
// classify where in the submit/stream pipeline a call failed.
const (
	CodeToolNotAvailable = "TOOL_NOT_AVAILABLE"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeConnectionError  = "CONNECTION_ERROR"
	CodeSendError        = "SEND_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeExecutionFailed  = "EXECUTION_FAILED"
	CodeDisconnected     = "DISCONNECTED"
)

// ToolCallError is the typed failure returned by the tool call facade.
// Callers classify with Code (or errors.As) rather than string matching.
type ToolCallError struct {
	Code    string
	Message string
	Details any
	Err     error
}

func (e *ToolCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ToolCallError) Unwrap() error {
	return e.Err
}

// NewToolCallError builds a ToolCallError wrapping an optional cause.
func NewToolCallError(code, message string, cause error) *ToolCallError {
	return &ToolCallError{Code: code, Message: message, Err: cause}
}

// CallErrorCode extracts the taxonomy code from err, or "" when err is not a
// ToolCallError.
func CallErrorCode(err error) string {
	var tce *ToolCallError
	if errors.As(err, &tce) {
		return tce.Code
	}
	return ""
}
