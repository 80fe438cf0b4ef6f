package domain

import (
	"encoding/json"
	"time"
)

// StreamEventType classifies frames pushed by the runtime on the event stream.
type StreamEventType string

const (
	StreamToolResult StreamEventType = "tool_result"
	StreamError      StreamEventType = "error"
	StreamHeartbeat  StreamEventType = "heartbeat"
	StreamConnected  StreamEventType = "connected"
)

// StreamEvent is one decoded frame from the push channel. Events are
// ephemeral: they exist only between parse and dispatch and are never
// persisted.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToolResultPayload is the decoded body of a tool_result frame.
type ToolResultPayload struct {
	RequestID string       `json:"requestId"`
	Result    any          `json:"result,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Metadata  struct {
		EstimatedTokens int    `json:"estimatedTokens,omitempty"`
		Cached          bool   `json:"cached,omitempty"`
		RuntimeVersion  string `json:"runtimeVersion,omitempty"`
	} `json:"metadata,omitzero"`
}

// ErrorPayload is the decoded body of an error frame.
type ErrorPayload struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}
