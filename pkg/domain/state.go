package domain

// ConnectionState describes the bridge's view of the runtime connection.
// Exactly one instance exists per client; it is mutated only by the
// connection state machine.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)
