/*
Package conduit is a backend for routing natural-language requests to
tool executions on an external runtime.

The core is the bridge: a client that holds one server-sent event stream
open against the OMC runtime, submits tool calls over a separate HTTP
control channel, and correlates asynchronous results back to blocked
callers by request ID. Around it sit a tool registry with schema-driven
input validation, a circuit breaker guarding submissions, and adapters
exposing the whole thing over REST and the Model Context Protocol.

# Usage

Construct a Backend from configuration, connect, and execute:

	cfg, err := config.Load("conduit.yaml")
	if err != nil {
		log.Fatal(err)
	}

	backend, err := conduit.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	ctx := context.Background()
	if err := backend.Bridge.Connect(ctx); err != nil {
		log.Printf("runtime unreachable, reconnecting in background: %v", err)
	}

	resp, err := backend.Bridge.ExecuteToolCall(ctx, domain.ToolCallRequest{
		ToolName:  "lsp_hover",
		Arguments: map[string]any{"file": "main.go", "line": 42},
	})
*/
package conduit

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/conduit-ai/conduit/internal/config"
	"github.com/conduit-ai/conduit/pkg/adapters/memory"
	redisstore "github.com/conduit-ai/conduit/pkg/adapters/redis"
	"github.com/conduit-ai/conduit/pkg/breaker"
	"github.com/conduit-ai/conduit/pkg/bridge"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/persistence/middleware"
	"github.com/conduit-ai/conduit/pkg/ports"
	"github.com/conduit-ai/conduit/pkg/registry"
)

// Version is the release version reported by the CLI and the MCP server.
var Version = "0.3.0"

// Backend bundles the wired components: the tool registry, the runtime
// bridge, and the record store.
type Backend struct {
	Registry *registry.Registry
	Bridge   *bridge.Client
	Store    ports.RecordStore
}

// Option defines a functional option for configuring the Backend.
type Option func(*settings)

type settings struct {
	logger  *slog.Logger
	metrics ports.MetricsSink
	hooks   *domain.BridgeHooks
	store   ports.RecordStore
}

// WithLogger sets the structured logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithMetrics sets the sink receiving call outcome records.
func WithMetrics(m ports.MetricsSink) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithHooks registers connection lifecycle callbacks.
func WithHooks(h *domain.BridgeHooks) Option {
	return func(s *settings) {
		s.hooks = h
	}
}

// WithStore injects a record store, bypassing the Redis/memory selection
// driven by the config.
func WithStore(st ports.RecordStore) Option {
	return func(s *settings) {
		s.store = st
	}
}

// New wires a Backend from configuration. The bridge is constructed but
// not connected; call Backend.Bridge.Connect to open the stream.
func New(cfg *config.Config, opts ...Option) (*Backend, error) {
	if cfg.Runtime.BaseURL == "" {
		return nil, fmt.Errorf("runtime base_url is required")
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	reg := registry.New()
	for _, tool := range cfg.Tools {
		schema, err := tool.SchemaJSON()
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterSchema(tool.Name, tool.Description, tool.DefaultTimeout.Std(), schema); err != nil {
			return nil, err
		}
	}

	brk := breaker.New(
		breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		breaker.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
		breaker.WithOpenTimeout(cfg.Breaker.OpenTimeout.Std()),
	)

	bridgeOpts := []bridge.Option{
		bridge.WithBreaker(brk),
		bridge.WithRetryDelay(cfg.Runtime.RetryDelay.Std(), cfg.Runtime.MaxRetryDelay.Std()),
		bridge.WithHealthInterval(cfg.Runtime.HealthInterval.Std()),
		bridge.WithFallbackTimeout(cfg.Runtime.DefaultTimeout.Std()),
	}
	if cfg.Runtime.APIKey != "" {
		bridgeOpts = append(bridgeOpts, bridge.WithAPIKey(cfg.Runtime.APIKey))
	}
	if s.logger != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithLogger(s.logger))
	}
	if s.metrics != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithMetrics(s.metrics))
	}
	if s.hooks != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithHooks(s.hooks))
	}

	store := s.store
	if store == nil {
		if cfg.Redis.Addr != "" {
			store = redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		} else {
			store = memory.NewStore()
		}
	}
	store, err := wrapStore(store, cfg.Store)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Registry: reg,
		Bridge:   bridge.New(cfg.Runtime.BaseURL, reg, bridgeOpts...),
		Store:    store,
	}, nil
}

// wrapStore layers the configured persistence middleware over the raw
// store. Token records are the only kind encrypted; redaction applies to
// all records, before encryption.
func wrapStore(store ports.RecordStore, cfg config.StoreConfig) (ports.RecordStore, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactKeys) > 0 {
		mws = append(mws, middleware.NewRedactionMiddleware(cfg.RedactKeys))
	}
	if cfg.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store encryption_key is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("store encryption_key must decode to 32 bytes, got %d", len(key))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: key,
			Kinds:     []string{ports.KindToken},
		}))
	}
	if len(mws) == 0 {
		return store, nil
	}
	return middleware.Chain(store, mws...), nil
}

// Close disconnects the bridge, failing any in-flight calls.
func (b *Backend) Close() {
	b.Bridge.Disconnect()
}
