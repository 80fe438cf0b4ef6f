// Package bridge implements the client to the OMC runtime: the external
// process executing tools on behalf of this backend. Requests are submitted
// over a plain HTTP control channel; results arrive asynchronously on a
// long-lived event stream and are correlated back to the originating caller
// by request ID. The client reconnects automatically after involuntary
// connection loss and gates submissions through a circuit breaker.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/conduit-ai/conduit/pkg/breaker"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Provider is the name reported to the metrics sink for runtime calls.
const Provider = "omc"

// Client is the OMC runtime bridge. Construct with New, then Connect; one
// client owns one stream connection and any number of goroutines may call
// ExecuteToolCall concurrently. Disconnect ends the lifecycle.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client // control channel + health probes
	streamc *http.Client // event stream; no overall timeout

	registry ports.ToolRegistry
	brk      ports.Breaker
	metrics  ports.MetricsSink
	hooks    *domain.BridgeHooks
	logger   *slog.Logger
	clk      clock.Clock

	retryDelay      time.Duration
	maxRetryDelay   time.Duration
	healthInterval  time.Duration
	fallbackTimeout time.Duration

	pending   *pendingTable
	stats     counters
	startedAt time.Time

	mu             sync.Mutex
	state          domain.ConnectionState
	gen            uint64 // connection generation; stale goroutines check it
	streamCancel   context.CancelFunc
	reconnectTimer *clock.Timer
	attempts       int
}

// New creates a bridge client for the runtime at baseURL. The registry is
// consulted on every call to reject unknown tools and supply default
// timeouts.
func New(baseURL string, reg ports.ToolRegistry, opts ...Option) *Client {
	c := &Client{
		baseURL:         baseURL,
		httpc:           &http.Client{Timeout: 30 * time.Second},
		streamc:         &http.Client{},
		registry:        reg,
		metrics:         nopMetrics{},
		logger:          slog.Default(),
		clk:             clock.New(),
		retryDelay:      time.Second,
		maxRetryDelay:   30 * time.Second,
		healthInterval:  30 * time.Second,
		fallbackTimeout: 30 * time.Second,
		pending:         newPendingTable(),
		state:           domain.StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.brk == nil {
		c.brk = breaker.New(breaker.WithClock(c.clk))
	}
	c.startedAt = c.clk.Now()
	return c
}

// Connect opens the event stream. Idempotent: if the client is already
// connected or connecting it returns immediately without network activity.
// On failure the state moves to error and a reconnect is scheduled.
//
// Results pushed while the stream was down are not replayed after
// reconnection; calls in flight across a drop are failed by the disconnect
// sweep or their own timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StateConnected || c.state == domain.StateConnecting {
		c.mu.Unlock()
		return nil
	}
	change := c.setStateLocked(domain.StateConnecting)
	c.mu.Unlock()
	c.fire(change)

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		cancel()
		return c.connectFailed(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.streamc.Do(req)
	if err != nil {
		cancel()
		return c.connectFailed(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return c.connectFailed(fmt.Errorf("event stream returned status %d", resp.StatusCode))
	}

	c.mu.Lock()
	if c.state != domain.StateConnecting {
		// Disconnect raced the dial; drop the fresh stream.
		c.mu.Unlock()
		resp.Body.Close()
		cancel()
		return nil
	}
	c.gen++
	gen := c.gen
	c.streamCancel = cancel
	c.attempts = 0
	change = c.setStateLocked(domain.StateConnected)
	c.mu.Unlock()
	c.fire(change)
	c.hooks.FireConnected()
	c.logger.Info("bridge: connected", "url", c.baseURL)

	go c.readLoop(gen, resp.Body)
	go c.monitorHealth(streamCtx, gen)
	return nil
}

func (c *Client) connectFailed(cause error) error {
	c.mu.Lock()
	change := c.setStateLocked(domain.StateError)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.fire(change)
	c.logger.Warn("bridge: connect failed", "err", cause)
	return domain.NewToolCallError(domain.CodeConnectionError, "failed to open event stream", cause)
}

// Disconnect tears the connection down intentionally: the reconnect and
// health timers are cancelled, the stream is aborted, and every pending
// request is rejected with a disconnection error. No reconnection is
// scheduled; only involuntary loss triggers that.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.attempts = 0
	c.gen++ // invalidate in-flight read loops and monitors
	cancel := c.streamCancel
	c.streamCancel = nil
	change := c.setStateLocked(domain.StateDisconnected)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.failPending("client disconnected")
	c.fire(change)
	if change != nil {
		c.hooks.FireDisconnected()
		c.logger.Info("bridge: disconnected")
	}
}

// ExecuteToolCall validates the tool against the registry, submits the
// request over the control channel, and blocks until a matching result
// event arrives, the per-call timeout fires, or the connection is lost.
// Exactly one of those completes the call.
func (c *Client) ExecuteToolCall(ctx context.Context, req domain.ToolCallRequest) (*domain.ToolCallResponse, error) {
	def, ok := c.registry.Definition(req.ToolName)
	if !ok {
		return nil, domain.NewToolCallError(domain.CodeToolNotAvailable,
			fmt.Sprintf("tool %q is not available", req.ToolName), nil)
	}
	if def.Validate != nil {
		if err := def.Validate(req.Arguments); err != nil {
			return nil, domain.NewToolCallError(domain.CodeInvalidInput,
				fmt.Sprintf("invalid input for tool %q", req.ToolName), err)
		}
	}

	req.RequestID = uuid.NewString()
	timeout := c.callTimeout(req.TimeoutMs, def.DefaultTimeout)
	req.TimeoutMs = timeout.Milliseconds()

	// Connecting and calling are separate failure domains: establishing the
	// stream is not gated by the breaker.
	if c.State() != domain.StateConnected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	p := &pendingCall{
		requestID: req.RequestID,
		toolName:  req.ToolName,
		startTime: c.clk.Now(),
		timeout:   timeout,
		done:      make(chan callOutcome, 1),
	}

	err := c.brk.Execute(ctx, func(ctx context.Context) error {
		c.pending.add(p)
		p.timer = c.clk.AfterFunc(timeout, func() { c.expire(p) })
		if err := c.submit(ctx, req); err != nil {
			if q := c.pending.take(p.requestID); q != nil {
				c.complete(q, callOutcome{err: domain.NewToolCallError(
					domain.CodeSendError, "request submission failed", err)})
			}
			return err
		}
		return nil
	})
	if err != nil {
		select {
		case out := <-p.done:
			// Submission failed after registration; surface the taxonomy error.
			return out.resp, out.err
		default:
			// Breaker rejected before the entry was registered.
			return nil, err
		}
	}

	select {
	case out := <-p.done:
		return out.resp, out.err
	case <-ctx.Done():
		if q := c.pending.take(p.requestID); q != nil {
			c.complete(q, callOutcome{resp: &domain.ToolCallResponse{
				RequestID: p.requestID,
				Status:    domain.StatusCancelled,
				Metadata:  domain.ResponseMetadata{DurationMs: c.clk.Since(p.startTime).Milliseconds()},
			}})
		}
		out := <-p.done
		return out.resp, out.err
	}
}

// Health reports the bridge's aggregate health snapshot.
func (c *Client) Health(ctx context.Context) domain.Health {
	stats := c.stats.snapshot()
	state := c.State()
	return domain.Health{
		State:           state,
		Healthy:         state == domain.StateConnected,
		Stats:           stats,
		AverageMs:       stats.AverageResponseTimeMs(),
		PendingRequests: c.pending.len(),
		UptimeMs:        c.clk.Since(c.startedAt).Milliseconds(),
		AvailableTools:  c.registry.List(),
	}
}

// HealthCheck probes the runtime's health endpoint once.
func (c *Client) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// State reports the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// -- internal --

// setStateLocked transitions the state and returns the change to fire after
// the lock is released, or nil when the state did not move.
func (c *Client) setStateLocked(to domain.ConnectionState) *domain.StateChange {
	if c.state == to {
		return nil
	}
	change := &domain.StateChange{From: c.state, To: to}
	c.state = to
	return change
}

func (c *Client) fire(change *domain.StateChange) {
	if change == nil {
		return
	}
	c.logger.Debug("bridge: state change", "from", change.From, "to", change.To)
	c.hooks.FireStateChange(change.From, change.To)
}

func (c *Client) callTimeout(overrideMs int64, registryDefault time.Duration) time.Duration {
	if overrideMs > 0 {
		return time.Duration(overrideMs) * time.Millisecond
	}
	if registryDefault > 0 {
		return registryDefault
	}
	return c.fallbackTimeout
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// submit posts the request envelope to the control channel. A non-2xx
// response is a submission failure, distinct from a tool-execution failure.
func (c *Client) submit(ctx context.Context, req domain.ToolCallRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/execute", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submission returned status %d: %s", resp.StatusCode, snippet)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// readLoop drives the event stream for one connection generation. It never
// blocks a caller; it only resolves pending entries.
func (c *Client) readLoop(gen uint64, body io.ReadCloser) {
	defer body.Close()

	var remainder string
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			var events []domain.StreamEvent
			events, remainder = parseStream(remainder, buf[:n])
			for _, ev := range events {
				c.dispatch(ev)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				c.logger.Warn("bridge: stream read error", "err", err)
			}
			c.streamLost(gen, err)
			return
		}
	}
}

// dispatch routes one decoded stream event. Events whose request ID has no
// table entry (already resolved, timed out, or never existed) are dropped
// silently apart from a debug trace.
func (c *Client) dispatch(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.StreamHeartbeat:
		c.logger.Debug("bridge: heartbeat")

	case domain.StreamConnected:
		c.logger.Debug("bridge: runtime announced connection", "data", string(ev.Data))

	case domain.StreamToolResult:
		var payload domain.ToolResultPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			c.logger.Warn("bridge: undecodable tool_result payload", "err", err)
			return
		}
		id := payload.RequestID
		if id == "" {
			id = ev.RequestID
		}
		p := c.pending.take(id)
		if p == nil {
			c.logger.Debug("bridge: dropping orphan result", "request_id", id)
			return
		}
		resp := &domain.ToolCallResponse{
			RequestID: id,
			Metadata: domain.ResponseMetadata{
				DurationMs:      c.clk.Since(p.startTime).Milliseconds(),
				EstimatedTokens: payload.Metadata.EstimatedTokens,
				Cached:          payload.Metadata.Cached,
				RuntimeVersion:  payload.Metadata.RuntimeVersion,
			},
		}
		if payload.Error != nil {
			resp.Status = domain.StatusError
			resp.Error = payload.Error
		} else {
			resp.Status = domain.StatusSuccess
			resp.Result = payload.Result
		}
		c.complete(p, callOutcome{resp: resp})

	case domain.StreamError:
		var payload domain.ErrorPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			c.logger.Warn("bridge: undecodable error payload", "err", err)
			return
		}
		id := payload.RequestID
		if id == "" {
			id = ev.RequestID
		}
		if id == "" {
			c.logger.Warn("bridge: runtime error", "code", payload.Code, "message", payload.Message)
			return
		}
		p := c.pending.take(id)
		if p == nil {
			c.logger.Debug("bridge: dropping orphan error", "request_id", id)
			return
		}
		code := payload.Code
		if code == "" {
			code = domain.CodeExecutionFailed
		}
		c.complete(p, callOutcome{resp: &domain.ToolCallResponse{
			RequestID: id,
			Status:    domain.StatusError,
			Error:     &domain.ErrorDetail{Code: code, Message: payload.Message, Details: payload.Details},
			Metadata:  domain.ResponseMetadata{DurationMs: c.clk.Since(p.startTime).Milliseconds()},
		}})

	default:
		c.logger.Debug("bridge: ignoring unknown event type", "type", ev.Type)
	}
}

// complete finishes one call: delivers the outcome, updates the statistics
// accumulator, and forwards the call-outcome record to the metrics sink.
// Duplicate completion attempts are no-ops.
func (c *Client) complete(p *pendingCall, out callOutcome) {
	if !p.resolve(out) {
		return
	}

	status := domain.StatusError
	durationMs := c.clk.Since(p.startTime).Milliseconds()
	if out.resp != nil {
		status = out.resp.Status
		durationMs = out.resp.Metadata.DurationMs
	} else if domain.CallErrorCode(out.err) == domain.CodeTimeout {
		status = domain.StatusTimeout
	}

	c.stats.record(status, durationMs)
	c.metrics.Record(ports.CallOutcome{
		Provider:   Provider,
		ToolName:   p.toolName,
		Success:    status == domain.StatusSuccess,
		DurationMs: durationMs,
	})
}

// expire fires when a call's deadline elapses before a result arrives. A
// result event landing later finds no table entry and is dropped.
func (c *Client) expire(p *pendingCall) {
	q := c.pending.take(p.requestID)
	if q == nil {
		return
	}
	c.logger.Warn("bridge: call timed out", "tool", p.toolName, "request_id", p.requestID, "timeout", p.timeout)
	c.complete(q, callOutcome{err: domain.NewToolCallError(domain.CodeTimeout,
		fmt.Sprintf("no result within %s", p.timeout), nil)})
}

// streamLost handles involuntary connection loss: the pending table is
// swept, the state drops to disconnected, and a reconnect is scheduled.
// Stale generations (already superseded or intentionally disconnected) are
// ignored so each failure episode triggers exactly one reconnect cycle.
func (c *Client) streamLost(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.state != domain.StateConnected {
		c.mu.Unlock()
		return
	}
	cancel := c.streamCancel
	c.streamCancel = nil
	change := c.setStateLocked(domain.StateDisconnected)
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.failPending("connection to runtime lost")
	c.fire(change)
	c.hooks.FireDisconnected()
	c.logger.Warn("bridge: stream lost", "err", cause)
}

// failPending sweeps the table, rejecting every entry with a disconnection
// error.
func (c *Client) failPending(reason string) {
	for _, p := range c.pending.sweep() {
		c.complete(p, callOutcome{err: domain.NewToolCallError(domain.CodeDisconnected, reason, nil)})
	}
}

// scheduleReconnectLocked arms the reconnect timer, doubling the delay per
// consecutive failed attempt up to the maximum. Guarded against duplicate
// timers. Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	delay := c.retryDelay
	for i := 0; i < c.attempts && delay < c.maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > c.maxRetryDelay {
		delay = c.maxRetryDelay
	}
	c.attempts++

	c.logger.Info("bridge: reconnect scheduled", "delay", delay, "attempt", c.attempts)
	c.reconnectTimer = c.clk.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		// A failed attempt schedules the next one itself.
		_ = c.Connect(context.Background())
	})
}

// monitorHealth probes the runtime while connected. A failed probe observed
// while the state is still connected is treated as involuntary connection
// loss, not a user-initiated disconnect.
func (c *Client) monitorHealth(ctx context.Context, gen uint64) {
	ticker := c.clk.Ticker(c.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != domain.StateConnected {
				return
			}
			if c.HealthCheck(ctx) {
				continue
			}
			c.logger.Warn("bridge: health probe failed")
			c.streamLost(gen, errors.New("health probe failed"))
			return
		}
	}
}

var _ ports.RuntimeBridge = (*Client)(nil)
