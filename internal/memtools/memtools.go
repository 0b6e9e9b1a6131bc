// Package memtools provides the MCP tool handlers over the record
// store.
//
// Each tool handler follows the same pattern:
//   - A struct with dependencies (memory.Pool) injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes the request and returns a result
//
// Namespaces cross the wire as "/"-joined paths (for example
// "analytics/prod/planner/session-042") and are validated before use.
package memtools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/store"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// namespaceArg resolves the required "namespace" argument into a bound
// Memory facade.
func namespaceArg(pool *memory.Pool, req mcp.CallToolRequest) (*memory.Memory, error) {
	path := req.GetString("namespace", "")
	if path == "" {
		return nil, fmt.Errorf("'namespace' is required")
	}
	return pool.Namespace(strings.Split(path, "/")...)
}

// valueArg parses the "value" argument: a JSON object becomes a
// structured value, anything else is stored as raw text.
func valueArg(req mcp.CallToolRequest) (store.Value, error) {
	raw, ok := req.GetArguments()["value"]
	if !ok {
		return store.Value{}, fmt.Errorf("'value' is required")
	}
	switch v := raw.(type) {
	case map[string]any:
		return store.Structured(v), nil
	case string:
		return store.Raw(v), nil
	default:
		return store.Value{}, fmt.Errorf("'value' must be an object or a string (got %T)", raw)
	}
}

// tagsArg parses the optional "tags" argument (a JSON object).
func tagsArg(req mcp.CallToolRequest) (map[string]any, error) {
	raw, ok := req.GetArguments()["tags"]
	if !ok || raw == nil {
		return nil, nil
	}
	tags, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'tags' must be an object (got %T)", raw)
	}
	return tags, nil
}

// renderValue formats a stored value for a tool response.
func renderValue(v store.Value) string {
	if text, ok := v.Text(); ok {
		return text
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<unrenderable value: %v>", err)
	}
	return string(b)
}
