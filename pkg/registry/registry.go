// Package registry manages the catalog of tools invocable through the OMC
// runtime. Each entry carries a default timeout and an optional OpenAPI
// schema used to reject invalid inputs before any network activity.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/conduit-ai/conduit/pkg/ports"
)

// DefaultTimeout applies when a tool is registered without one.
const DefaultTimeout = 30 * time.Second

// Registry implements ports.ToolRegistry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ports.ToolDefinition
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]ports.ToolDefinition),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(def ports.ToolDefinition) {
	if def.DefaultTimeout <= 0 {
		def.DefaultTimeout = DefaultTimeout
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
}

// RegisterSchema adds a tool whose input validation is driven by an OpenAPI
// schema given as a raw JSON document. A nil schema disables validation.
func (r *Registry) RegisterSchema(name, description string, timeout time.Duration, rawSchema json.RawMessage) error {
	def := ports.ToolDefinition{
		Name:           name,
		Description:    description,
		DefaultTimeout: timeout,
	}
	if len(rawSchema) > 0 {
		var schema openapi3.Schema
		if err := json.Unmarshal(rawSchema, &schema); err != nil {
			return fmt.Errorf("tool %q: invalid input schema: %w", name, err)
		}
		def.Validate = SchemaValidator(&schema)
	}
	r.Register(def)
	return nil
}

// Definition looks up a tool by name.
func (r *Registry) Definition(name string) (ports.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaValidator builds a validation func from an OpenAPI schema.
func SchemaValidator(schema *openapi3.Schema) func(map[string]any) error {
	return func(args map[string]any) error {
		// VisitJSON expects the decoded JSON value shape; arguments arrive
		// as map[string]any from the API layer already.
		if err := schema.VisitJSON(normalize(args)); err != nil {
			return err
		}
		return nil
	}
}

// normalize converts argument values into the shapes VisitJSON understands
// (JSON round-trip squashes ints into float64 and typed maps into
// map[string]any).
func normalize(args map[string]any) map[string]any {
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return args
	}
	return out
}

var _ ports.ToolRegistry = (*Registry)(nil)
