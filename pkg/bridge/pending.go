package bridge

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// callOutcome is the single value delivered to a waiting caller.
type callOutcome struct {
	resp *domain.ToolCallResponse
	err  error
}

// pendingCall tracks one in-flight tool invocation awaiting its result.
// done is buffered so resolution never blocks the event-processing path,
// and the once guard makes resolution single-fire: whichever of
// {result event, timeout, disconnect sweep} happens first wins, the rest
// are no-ops.
type pendingCall struct {
	requestID string
	toolName  string
	startTime time.Time
	timeout   time.Duration
	timer     *clock.Timer

	once sync.Once
	done chan callOutcome
}

func (p *pendingCall) resolve(out callOutcome) bool {
	fired := false
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- out
		fired = true
	})
	return fired
}

// pendingTable is the in-memory map from request identifier to the awaiting
// caller. All mutation is serialized behind its mutex.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

func (t *pendingTable) add(p *pendingCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[p.requestID] = p
}

// take removes and returns the entry for requestID. Returns nil when no
// entry exists (already resolved, timed out, or never registered).
func (t *pendingTable) take(requestID string) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.calls[requestID]
	if !ok {
		return nil
	}
	delete(t.calls, requestID)
	return p
}

// sweep removes every entry and returns them for resolution by the caller.
func (t *pendingTable) sweep() []*pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	swept := make([]*pendingCall, 0, len(t.calls))
	for _, p := range t.calls {
		swept = append(swept, p)
	}
	t.calls = make(map[string]*pendingCall)
	return swept
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
