// Package mcp exposes the registry's tools over the Model Context
// Protocol, backed by the runtime bridge.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conduit-ai/conduit"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Server wraps the runtime bridge and exposes it as an MCP server.
type Server struct {
	bridge    ports.RuntimeBridge
	registry  ports.ToolRegistry
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server exposing every tool currently in the
// registry. Tools registered later are not picked up.
func NewServer(bridge ports.RuntimeBridge, registry ports.ToolRegistry) *Server {
	s := &Server{
		bridge:    bridge,
		registry:  registry,
		mcpServer: server.NewMCPServer("conduit-mcp", strings.TrimSpace(conduit.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
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

func (s *Server) registerTools() {
	for _, name := range s.registry.List() {
		def, ok := s.registry.Definition(name)
		if !ok {
			continue
		}
		tool := mcp.NewTool(def.Name,
			mcp.WithDescription(def.Description),
		)
		s.mcpServer.AddTool(tool, s.handleToolCall(def.Name))
	}
}

// handleToolCall forwards an MCP tool invocation to the bridge and renders
// the outcome as an MCP result.
func (s *Server) handleToolCall(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := s.bridge.ExecuteToolCall(ctx, domain.ToolCallRequest{
			ToolName:  toolName,
			Arguments: request.GetArguments(),
		})
		if err != nil {
			slog.Warn("MCP tool call failed", "tool", toolName, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if resp.Status != domain.StatusSuccess {
			msg := string(resp.Status)
			if resp.Error != nil {
				msg = fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		jsonBytes, err := json.Marshal(resp.Result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

func (s *Server) registerResources() {
	// EXPOSE: conduit://health
	s.mcpServer.AddResource(mcp.NewResource("conduit://health", "Bridge Health Snapshot",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		health := s.bridge.Health(ctx)
		jsonBytes, _ := json.Marshal(health)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "conduit://health",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
