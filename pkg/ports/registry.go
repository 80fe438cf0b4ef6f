package ports

import "time"

// ToolDefinition describes one invocable tool known to the registry.
type ToolDefinition struct {
	Name           string
	Description    string
	DefaultTimeout time.Duration

	// Validate checks caller-supplied arguments against the tool's input
	// schema. Nil means the tool accepts any input.
	Validate func(args map[string]any) error
}

// ToolRegistry resolves tool names to definitions. Read-mostly; safe for
// concurrent use by multiple callers.
type ToolRegistry interface {
	// Definition returns the tool's definition, or false when the name is
	// unknown.
	Definition(name string) (ToolDefinition, bool)

	// List returns the names of all registered tools, sorted.
	List() []string
}
