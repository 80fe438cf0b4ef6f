// Package testutils provides a fake OMC runtime for bridge tests: an
// in-process HTTP server exposing the event stream, submission, and health
// endpoints with scriptable behavior.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// FakeRuntime is a scriptable stand-in for the OMC runtime.
type FakeRuntime struct {
	Server *httptest.Server

	mu          sync.Mutex
	streams     map[chan string]struct{}
	submissions []domain.ToolCallRequest
	submitCode  int // response status for /tools/execute
	healthCode  int // response status for /health
	onSubmit    func(domain.ToolCallRequest)
}

// NewFakeRuntime starts the fake runtime. Callers must Close it.
func NewFakeRuntime() *FakeRuntime {
	rt := &FakeRuntime{
		streams:    make(map[chan string]struct{}),
		submitCode: http.StatusAccepted,
		healthCode: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", rt.handleEvents)
	mux.HandleFunc("POST /tools/execute", rt.handleExecute)
	mux.HandleFunc("GET /health", rt.handleHealth)
	rt.Server = httptest.NewServer(mux)
	return rt
}

// URL returns the runtime's base URL.
func (rt *FakeRuntime) URL() string {
	return rt.Server.URL
}

// Close shuts the server down, ending any open streams.
func (rt *FakeRuntime) Close() {
	rt.CloseStreams()
	rt.Server.Close()
}

func (rt *FakeRuntime) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan string, 16)
	rt.mu.Lock()
	rt.streams[ch] = struct{}{}
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		delete(rt.streams, ch)
		rt.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}
}

func (rt *FakeRuntime) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req domain.ToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rt.mu.Lock()
	rt.submissions = append(rt.submissions, req)
	code := rt.submitCode
	onSubmit := rt.onSubmit
	rt.mu.Unlock()

	if code >= 400 {
		http.Error(w, "submission rejected", code)
		return
	}
	w.WriteHeader(code)

	if onSubmit != nil {
		go onSubmit(req)
	}
}

func (rt *FakeRuntime) handleHealth(w http.ResponseWriter, r *http.Request) {
	rt.mu.Lock()
	code := rt.healthCode
	rt.mu.Unlock()
	w.WriteHeader(code)
}

// Push writes a raw SSE frame (terminated by a blank line) to every open
// stream.
func (rt *FakeRuntime) Push(frame string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for ch := range rt.streams {
		select {
		case ch <- frame:
		default:
		}
	}
}

// PushToolResult pushes a tool_result frame for requestID.
func (rt *FakeRuntime) PushToolResult(requestID string, result any) {
	payload, _ := json.Marshal(map[string]any{"requestId": requestID, "result": result})
	rt.Push(fmt.Sprintf("event: tool_result\ndata: %s\n\n", payload))
}

// PushError pushes an error frame for requestID.
func (rt *FakeRuntime) PushError(requestID, code, message string) {
	payload, _ := json.Marshal(map[string]any{"requestId": requestID, "code": code, "message": message})
	rt.Push(fmt.Sprintf("event: error\ndata: %s\n\n", payload))
}

// CloseStreams terminates every open event stream without stopping the
// server, simulating involuntary connection loss.
func (rt *FakeRuntime) CloseStreams() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for ch := range rt.streams {
		close(ch)
		delete(rt.streams, ch)
	}
}

// StreamCount reports the number of open event streams.
func (rt *FakeRuntime) StreamCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.streams)
}

// SetSubmitStatus scripts the status code returned by /tools/execute.
func (rt *FakeRuntime) SetSubmitStatus(code int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.submitCode = code
}

// SetHealthStatus scripts the status code returned by /health.
func (rt *FakeRuntime) SetHealthStatus(code int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.healthCode = code
}

// OnSubmit registers a callback invoked (on its own goroutine) for each
// accepted submission, typically to push a correlated result.
func (rt *FakeRuntime) OnSubmit(fn func(domain.ToolCallRequest)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.onSubmit = fn
}

// Submissions returns a copy of the accepted submissions so far.
func (rt *FakeRuntime) Submissions() []domain.ToolCallRequest {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]domain.ToolCallRequest, len(rt.submissions))
	copy(out, rt.submissions)
	return out
}
