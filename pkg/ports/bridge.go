package ports

import (
	"context"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// RuntimeBridge is the public surface of the OMC runtime client. One bridge
// owns one stream connection; any number of callers may invoke
// ExecuteToolCall concurrently.
type RuntimeBridge interface {
	// Connect opens the event stream. Idempotent: a no-op when already
	// connected or connecting. It returns once the stream is open or the
	// attempt has failed (in which case reconnection is scheduled).
	Connect(ctx context.Context) error

	// Disconnect tears the connection down, failing every pending call with
	// a disconnection error. No reconnection is scheduled.
	Disconnect()

	// ExecuteToolCall submits a tool invocation and blocks until a result
	// arrives on the stream, the per-call timeout fires, or the connection
	// is lost.
	ExecuteToolCall(ctx context.Context, req domain.ToolCallRequest) (*domain.ToolCallResponse, error)

	// Health returns the bridge's aggregate health snapshot.
	Health(ctx context.Context) domain.Health

	// HealthCheck probes the runtime's health endpoint once.
	HealthCheck(ctx context.Context) bool

	// State reports the current connection state.
	State() domain.ConnectionState
}
