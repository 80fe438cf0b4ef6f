// Package http exposes the bridge over a small REST surface: tool
// execution, tool listing, health, and Prometheus metrics.
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Server routes REST requests to the runtime bridge.
type Server struct {
	bridge   ports.RuntimeBridge
	registry ports.ToolRegistry
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler for the bridge API.
func NewHandler(bridge ports.RuntimeBridge, registry ports.ToolRegistry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{bridge: bridge, registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Post("/v1/tools/execute", s.ExecuteTool)
	r.Get("/v1/tools", s.ListTools)
	r.Get("/v1/health", s.GetHealth)
	r.Handle("/metrics", promhttp.Handler())

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExecuteTool handles the POST /v1/tools/execute request.
func (s *Server) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req domain.ToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("ExecuteTool: invalid request body", "error", err)
		return
	}
	if req.ToolName == "" {
		http.Error(w, "Missing toolName", http.StatusBadRequest)
		return
	}

	resp, err := s.bridge.ExecuteToolCall(r.Context(), req)
	if err != nil {
		status := statusForCode(domain.CallErrorCode(err))
		http.Error(w, fmt.Sprintf("Tool call failed: %v", err), status)
		s.logger.Error("ExecuteTool failed", "tool", req.ToolName, "error", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("ExecuteTool response encode failed", "error", err)
	}
}

// ListTools handles the GET /v1/tools request.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	tools := make([]map[string]any, 0, len(names))
	for _, name := range names {
		def, ok := s.registry.Definition(name)
		if !ok {
			continue
		}
		tools = append(tools, map[string]any{
			"name":             def.Name,
			"description":      def.Description,
			"defaultTimeoutMs": def.DefaultTimeout.Milliseconds(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"tools": tools}); err != nil {
		s.logger.Error("ListTools response encode failed", "error", err)
	}
}

// GetHealth handles the GET /v1/health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	health := s.bridge.Health(r.Context())
	code := http.StatusOK
	if !health.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error("GetHealth response encode failed", "error", err)
	}
}

// statusForCode maps bridge error codes onto HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case domain.CodeToolNotAvailable:
		return http.StatusNotFound
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeConnectionError, domain.CodeDisconnected:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
