package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// Tool is a single operation in the fixed catalogue exposed to the model
type Tool interface {
	// Name returns the tool's name
	Name() string
	// Description returns what the tool does, for the model
	Description() string
	// Parameters returns the JSON schema of the tool's arguments
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments
	Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error)
}

// ToolResult is the structured outcome of one tool execution. Failures are
// part of the result, not Go errors, so the reasoning loop can observe them
// and recover conversationally.
type ToolResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Tasks   []*task.Task `json:"tasks,omitempty"`
}

func successResult(message string, tasks ...*task.Task) *ToolResult {
	return &ToolResult{Success: true, Message: message, Tasks: tasks}
}

func failureResult(format string, args ...interface{}) *ToolResult {
	return &ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// JSON serializes the result for the model's observation turn
func (r *ToolResult) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"message":"failed to encode result: %v"}`, err)
	}
	return string(data)
}

// Registry is the closed catalogue of tools. Lookups for names outside the
// catalogue fail; there is no dynamic registration after construction.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry containing exactly the given tools
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Get returns the named tool or an error for names outside the catalogue
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ToJSONSchema returns the catalogue in the OpenAI function-calling shape
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	schemas := make([]map[string]interface{}, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  t.Parameters(),
			},
		})
	}
	return schemas
}

// argument helpers shared by the task tools

func stringArg(args map[string]interface{}, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	if args[key] == nil {
		return ""
	}
	return fmt.Sprintf("%v", args[key])
}

func hasArg(args map[string]interface{}, key string) bool {
	v, ok := args[key]
	return ok && v != nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string, enum ...string) map[string]interface{} {
	prop := map[string]interface{}{
		"type":        "string",
		"description": description,
	}
	if len(enum) > 0 {
		prop["enum"] = enum
	}
	return prop
}
