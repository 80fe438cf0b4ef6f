package bridge_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/internal/testutils"
	"github.com/conduit-ai/conduit/pkg/breaker"
	"github.com/conduit-ai/conduit/pkg/bridge"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
	"github.com/conduit-ai/conduit/pkg/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Register(ports.ToolDefinition{
		Name:           "lsp_hover",
		Description:    "Hover information at a position",
		DefaultTimeout: 5 * time.Second,
	})
	reg.Register(ports.ToolDefinition{
		Name:           "code_exec",
		DefaultTimeout: 5 * time.Second,
	})
	return reg
}

func newTestClient(t *testing.T, rt *testutils.FakeRuntime, opts ...bridge.Option) *bridge.Client {
	t.Helper()
	base := []bridge.Option{
		bridge.WithRetryDelay(20*time.Millisecond, 100*time.Millisecond),
		bridge.WithHealthInterval(time.Hour), // disabled unless a test opts in
	}
	c := bridge.New(rt.URL(), newTestRegistry(t), append(base, opts...)...)
	t.Cleanup(c.Disconnect)
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// Scenario: the runtime pushes a matching tool_result shortly after the
// submission is accepted.
func TestClient_ExecuteToolCall_Success(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	rt.OnSubmit(func(req domain.ToolCallRequest) {
		time.Sleep(50 * time.Millisecond)
		rt.PushToolResult(req.RequestID, map[string]any{"hover": "string"})
	})

	c := newTestClient(t, rt)
	resp, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{
		ToolName:       "lsp_hover",
		Arguments:      map[string]any{"filePath": "a.ts", "line": 0, "character": 5},
		OrganizationID: "org-1",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, domain.StatusSuccess, resp.Status)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", result["hover"])
	assert.GreaterOrEqual(t, resp.Metadata.DurationMs, int64(0))

	health := c.Health(context.Background())
	assert.EqualValues(t, 1, health.Stats.TotalCalls)
	assert.EqualValues(t, 1, health.Stats.SuccessfulCalls)
	assert.Zero(t, health.PendingRequests)
}

func TestClient_ExecuteToolCall_UnknownTool(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	_, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "no_such_tool"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeToolNotAvailable, domain.CallErrorCode(err))

	// Pre-flight failure: no network activity at all.
	assert.Empty(t, rt.Submissions())
	assert.Equal(t, domain.StateDisconnected, c.State())
}

func TestClient_ExecuteToolCall_InvalidInput(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	reg := registry.New()
	reg.Register(ports.ToolDefinition{
		Name: "lsp_hover",
		Validate: func(args map[string]any) error {
			return assert.AnError
		},
	})
	c := bridge.New(rt.URL(), reg)
	t.Cleanup(c.Disconnect)

	_, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "lsp_hover"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidInput, domain.CallErrorCode(err))
	assert.Empty(t, rt.Submissions())
}

// Scenario: no stream event ever arrives; the local deadline fires and the
// table entry is gone afterwards.
func TestClient_ExecuteToolCall_Timeout(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	start := time.Now()
	_, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{
		ToolName:  "lsp_hover",
		TimeoutMs: 100,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, domain.CodeTimeout, domain.CallErrorCode(err))
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	health := c.Health(context.Background())
	assert.EqualValues(t, 1, health.Stats.TimedOutCalls)
	assert.Zero(t, health.PendingRequests, "table no longer contains the id")

	// A result arriving after the timeout finds no entry and changes nothing.
	for _, sub := range rt.Submissions() {
		rt.PushToolResult(sub.RequestID, "late")
	}
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, c.Health(context.Background()).Stats.TotalCalls)
}

// Scenario: five consecutive submission failures trip the breaker; the sixth
// call fails fast with no submission issued.
func TestClient_BreakerOpensAfterSubmissionFailures(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()
	rt.SetSubmitStatus(http.StatusInternalServerError)

	c := newTestClient(t, rt, bridge.WithBreaker(breaker.New(
		breaker.WithFailureThreshold(5),
	)))

	for i := 0; i < 5; i++ {
		_, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "lsp_hover"})
		require.Error(t, err)
		assert.Equal(t, domain.CodeSendError, domain.CallErrorCode(err), "call %d", i)
	}
	require.Len(t, rt.Submissions(), 5)

	_, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "lsp_hover"})
	require.ErrorIs(t, err, breaker.ErrOpen)
	assert.Len(t, rt.Submissions(), 5, "open breaker issues no submission")

	health := c.Health(context.Background())
	assert.EqualValues(t, 5, health.Stats.FailedCalls)
}

// Scenario: disconnect with outstanding requests rejects them all; a result
// event processed afterwards resolves nothing.
func TestClient_DisconnectSweepsPending(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "code_exec"})
		}(i)
	}

	waitFor(t, func() bool { return len(rt.Submissions()) == 3 }, "submissions not registered")
	waitFor(t, func() bool { return c.Health(context.Background()).PendingRequests == 3 }, "pending entries not registered")

	c.Disconnect()
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "call %d", i)
		assert.Equal(t, domain.CodeDisconnected, domain.CallErrorCode(err), "call %d", i)
	}
	assert.Zero(t, c.Health(context.Background()).PendingRequests)

	for _, sub := range rt.Submissions() {
		rt.PushToolResult(sub.RequestID, "zombie")
	}
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 3, c.Health(context.Background()).Stats.FailedCalls)
}

func TestClient_ConnectIdempotent(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	require.NoError(t, c.Connect(context.Background()))
	waitFor(t, func() bool { return rt.StreamCount() == 1 }, "stream not open")

	// Second connect performs no new network action.
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, rt.StreamCount())
	assert.Equal(t, domain.StateConnected, c.State())
}

func TestClient_ErrorEventResolvesCall(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	rt.OnSubmit(func(req domain.ToolCallRequest) {
		rt.PushError(req.RequestID, "SANDBOX_CRASH", "runtime worker crashed")
	})

	c := newTestClient(t, rt)
	resp, err := c.ExecuteToolCall(context.Background(), domain.ToolCallRequest{ToolName: "code_exec"})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, domain.StatusError, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SANDBOX_CRASH", resp.Error.Code)

	health := c.Health(context.Background())
	assert.EqualValues(t, 1, health.Stats.FailedCalls)
}

func TestClient_OrphanEventIsIgnored(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	require.NoError(t, c.Connect(context.Background()))
	waitFor(t, func() bool { return rt.StreamCount() == 1 }, "stream not open")

	rt.PushToolResult("never-registered", "orphan")
	time.Sleep(50 * time.Millisecond)

	health := c.Health(context.Background())
	assert.Zero(t, health.Stats.TotalCalls)
	assert.Equal(t, domain.StateConnected, c.State())
}

func TestClient_ReconnectsAfterStreamLoss(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	var mu sync.Mutex
	var changes []domain.StateChange
	hooks := &domain.BridgeHooks{
		OnStateChange: func(sc domain.StateChange) {
			mu.Lock()
			changes = append(changes, sc)
			mu.Unlock()
		},
	}

	c := newTestClient(t, rt, bridge.WithHooks(hooks))
	require.NoError(t, c.Connect(context.Background()))
	waitFor(t, func() bool { return rt.StreamCount() == 1 }, "stream not open")

	rt.CloseStreams()
	waitFor(t, func() bool { return rt.StreamCount() == 1 && c.State() == domain.StateConnected },
		"client did not reconnect")

	mu.Lock()
	defer mu.Unlock()
	var disconnects int
	for _, sc := range changes {
		if sc.To == domain.StateDisconnected {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects, "one loss episode, one disconnect transition")
}

// Scenario: repeated failed health probes while connected trigger exactly
// one disconnect episode, not one per probe.
func TestClient_HealthProbeFailureTriggersDisconnect(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	var disconnects int64
	var mu sync.Mutex
	hooks := &domain.BridgeHooks{
		OnDisconnected: func() {
			mu.Lock()
			disconnects++
			mu.Unlock()
		},
	}

	c := newTestClient(t, rt,
		bridge.WithHooks(hooks),
		bridge.WithHealthInterval(25*time.Millisecond),
		bridge.WithRetryDelay(10*time.Second, 10*time.Second), // no reconnect within the test window
	)
	require.NoError(t, c.Connect(context.Background()))
	waitFor(t, func() bool { return rt.StreamCount() == 1 }, "stream not open")

	rt.SetHealthStatus(http.StatusServiceUnavailable)
	waitFor(t, func() bool { return c.State() != domain.StateConnected }, "probe failure not detected")

	// Several probe intervals later there is still only the one episode.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.EqualValues(t, 1, disconnects)
}

func TestClient_HealthCheck(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	assert.True(t, c.HealthCheck(context.Background()))

	rt.SetHealthStatus(http.StatusInternalServerError)
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestClient_HealthSnapshot(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	health := c.Health(context.Background())

	assert.Equal(t, domain.StateDisconnected, health.State)
	assert.False(t, health.Healthy)
	assert.Equal(t, []string{"code_exec", "lsp_hover"}, health.AvailableTools)
	assert.GreaterOrEqual(t, health.UptimeMs, int64(0))
	assert.Zero(t, health.Stats.AverageResponseTimeMs())
}

func TestClient_ContextCancellationSynthesizesCancelled(t *testing.T) {
	rt := testutils.NewFakeRuntime()
	defer rt.Close()

	c := newTestClient(t, rt)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var resp *domain.ToolCallResponse
	var err error
	go func() {
		defer close(done)
		resp, err = c.ExecuteToolCall(ctx, domain.ToolCallRequest{ToolName: "code_exec"})
	}()

	waitFor(t, func() bool { return len(rt.Submissions()) == 1 }, "submission not registered")
	cancel()
	<-done

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, domain.StatusCancelled, resp.Status)
	assert.Zero(t, c.Health(context.Background()).PendingRequests)
}
