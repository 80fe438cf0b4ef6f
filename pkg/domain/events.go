package domain

// StateChange describes one connection state transition.
type StateChange struct {
	From ConnectionState
	To   ConnectionState
}

// BridgeHooks defines callbacks for bridge observability. All hooks are
// optional; nil hooks are skipped. Hooks are invoked synchronously from the
// bridge's own goroutines and must not block.
type BridgeHooks struct {
	OnStateChange  func(StateChange)
	OnConnected    func()
	OnDisconnected func()
}

func (h *BridgeHooks) FireStateChange(from, to ConnectionState) {
	if h != nil && h.OnStateChange != nil {
		h.OnStateChange(StateChange{From: from, To: to})
	}
}

func (h *BridgeHooks) FireConnected() {
	if h != nil && h.OnConnected != nil {
		h.OnConnected()
	}
}

func (h *BridgeHooks) FireDisconnected() {
	if h != nil && h.OnDisconnected != nil {
		h.OnDisconnected()
	}
}
