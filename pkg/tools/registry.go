// Package tools provides a registry for the functions conversational
// agents can call.
//
// Tools are discrete, stateless functions. Each tool has a name, a
// parameter schema (surfaced to the LLM for tool calling), and an
// execution function. Tool failures are reported inside the result map
// as readable strings so a failed call never crashes a conversation.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool represents an executable tool usable by agents.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// Parameters returns the JSON schema describing the tool's inputs
	Parameters() *ParameterSchema

	// Execute runs the tool with the given inputs and returns outputs.
	// Implementations in this repository never return a non-nil error for
	// operational failures; those surface as an error string in the output.
	Execute(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// ParameterSchema defines a set of parameters using JSON Schema conventions.
type ParameterSchema struct {
	// Type is the JSON type (always "object" for tool inputs)
	Type string `json:"type"`

	// Properties maps parameter names to their schemas
	Properties map[string]Property `json:"properties,omitempty"`

	// Required lists mandatory parameter names
	Required []string `json:"required,omitempty"`
}

// Property describes a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Registry holds the tools available to agents.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// Registering a name twice is an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	if tool.Name() == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	return out
}

// Execute runs a registered tool by name.
func (r *Registry) Execute(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	return tool.Execute(ctx, inputs)
}
