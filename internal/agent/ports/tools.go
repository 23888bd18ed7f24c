package ports

import (
	"context"
	"encoding/json"
)

// ToolExecutor executes a single tool call.
type ToolExecutor interface {
	// Execute runs the tool with given arguments. Tool-level failures are
	// reported inside the result, not as the second return value, so the
	// agent loop can feed them back to the model instead of aborting.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for the LLM
	Definition() ToolDefinition
}

// ToolRegistry manages available tools.
type ToolRegistry interface {
	// Register adds a tool to the registry
	Register(tool ToolExecutor) error

	// Get retrieves a tool by name
	Get(name string) (ToolExecutor, error)

	// List returns all available tool definitions
	List() []ToolDefinition
}

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the execution result.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Error   error  `json:"error,omitempty"`
}

// MarshalJSON encodes the error as its message so results can round-trip
// through response payloads.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID  string `json:"call_id"`
		Name    string `json:"name"`
		Content string `json:"content"`
		Error   string `json:"error,omitempty"`
	}
	a := alias{CallID: r.CallID, Name: r.Name, Content: r.Content}
	if r.Error != nil {
		a.Error = r.Error.Error()
	}
	return json.Marshal(a)
}

// ToolDefinition describes a tool for the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}
