package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
	"github.com/conduit-ai/conduit/pkg/registry"
)

// stubBridge scripts bridge behavior for handler tests.
type stubBridge struct {
	resp    *domain.ToolCallResponse
	err     error
	health  domain.Health
	lastReq domain.ToolCallRequest
}

func (b *stubBridge) Connect(ctx context.Context) error { return nil }
func (b *stubBridge) Disconnect()                       {}
func (b *stubBridge) ExecuteToolCall(ctx context.Context, req domain.ToolCallRequest) (*domain.ToolCallResponse, error) {
	b.lastReq = req
	return b.resp, b.err
}
func (b *stubBridge) Health(ctx context.Context) domain.Health { return b.health }
func (b *stubBridge) HealthCheck(ctx context.Context) bool     { return b.health.Healthy }
func (b *stubBridge) State() domain.ConnectionState            { return b.health.State }

var _ ports.RuntimeBridge = (*stubBridge)(nil)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Register(ports.ToolDefinition{
		Name:        "lsp_hover",
		Description: "Hover information from the language server",
	})
	return reg
}

func TestExecuteToolSuccess(t *testing.T) {
	bridge := &stubBridge{resp: &domain.ToolCallResponse{
		RequestID: "req-1",
		Status:    domain.StatusSuccess,
		Result:    json.RawMessage(`{"hover":"string"}`),
	}}
	handler := NewHandler(bridge, newTestRegistry(t), nil)

	body := `{"tool_name":"lsp_hover","arguments":{"file":"main.go"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.ToolCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, domain.StatusSuccess, resp.Status)
	assert.Equal(t, "lsp_hover", bridge.lastReq.ToolName)
}

func TestExecuteToolBadBody(t *testing.T) {
	handler := NewHandler(&stubBridge{}, newTestRegistry(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteToolErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{domain.CodeToolNotAvailable, http.StatusNotFound},
		{domain.CodeInvalidInput, http.StatusBadRequest},
		{domain.CodeTimeout, http.StatusGatewayTimeout},
		{domain.CodeConnectionError, http.StatusServiceUnavailable},
		{domain.CodeDisconnected, http.StatusServiceUnavailable},
		{domain.CodeExecutionFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			bridge := &stubBridge{err: domain.NewToolCallError(tc.code, "boom", nil)}
			handler := NewHandler(bridge, newTestRegistry(t), nil)

			body := `{"tool_name":"lsp_hover"}`
			req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", strings.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestListTools(t *testing.T) {
	handler := NewHandler(&stubBridge{}, newTestRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tools []struct {
			Name             string `json:"name"`
			DefaultTimeoutMs int64  `json:"defaultTimeoutMs"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "lsp_hover", resp.Tools[0].Name)
	assert.Equal(t, registry.DefaultTimeout.Milliseconds(), resp.Tools[0].DefaultTimeoutMs)
}

func TestGetHealth(t *testing.T) {
	bridge := &stubBridge{health: domain.Health{State: domain.StateConnected, Healthy: true}}
	handler := NewHandler(bridge, newTestRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health domain.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.Healthy)
	assert.Equal(t, domain.StateConnected, health.State)
}

func TestGetHealthUnavailable(t *testing.T) {
	bridge := &stubBridge{health: domain.Health{State: domain.StateDisconnected}}
	handler := NewHandler(bridge, newTestRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewHandler(&stubBridge{}, newTestRegistry(t), nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tools", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
