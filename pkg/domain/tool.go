package domain

// CallStatus is the terminal outcome of a tool call as reported to the caller.
type CallStatus string

const (
	StatusSuccess   CallStatus = "success"
	StatusError     CallStatus = "error"
	StatusTimeout   CallStatus = "timeout"
	StatusCancelled CallStatus = "cancelled"
)

// ToolCallRequest is the envelope submitted to the OMC runtime over the
// control channel. Immutable once built; sent exactly once.
type ToolCallRequest struct {
	RequestID      string         `json:"request_id"`
	ToolName       string         `json:"tool_name"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	OrganizationID string         `json:"organization_id"`
	UserID         string         `json:"user_id,omitempty"`
	TimeoutMs      int64          `json:"timeout_ms,omitempty"`
	Metadata       CallMetadata   `json:"metadata,omitzero"`
}

// CallMetadata carries caller-side correlation identifiers. All fields are
// optional and opaque to the runtime.
type CallMetadata struct {
	SessionID     string `json:"session_id,omitempty"`
	WorkflowID    string `json:"workflow_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ToolCallResponse is the result of a tool call. For success/error it is
// produced by the runtime; for timeout/cancelled it is synthesized locally.
type ToolCallResponse struct {
	RequestID string           `json:"request_id"`
	Status    CallStatus       `json:"status"`
	Result    any              `json:"result,omitempty"`
	Error     *ErrorDetail     `json:"error,omitempty"`
	Metadata  ResponseMetadata `json:"metadata"`
}

// ErrorDetail is the structured failure payload attached to an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseMetadata describes how a call was served.
type ResponseMetadata struct {
	DurationMs      int64  `json:"duration_ms"`
	EstimatedTokens int    `json:"estimated_tokens,omitempty"`
	Cached          bool   `json:"cached,omitempty"`
	RuntimeVersion  string `json:"runtime_version,omitempty"`
}
