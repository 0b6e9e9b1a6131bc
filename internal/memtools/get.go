package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
)

// GetTool handles the mem_get MCP tool.
type GetTool struct {
	pool *memory.Pool
}

// NewGetTool creates a GetTool.
func NewGetTool(pool *memory.Pool) *GetTool {
	return &GetTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_get",
		mcp.WithDescription(
			"Load one record by namespace and key. Expired records read as missing.",
		),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace path, '/'-joined"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Record key within the namespace"),
		),
	)
}

// Handle processes the mem_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mem, err := namespaceArg(t.pool, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	value, found, err := mem.Load(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load record: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultText(fmt.Sprintf("No record for %q in namespace %s", key, mem.Namespace().Path())), nil
	}
	return mcp.NewToolResultText(renderValue(value)), nil
}

// ─── DeleteTool ──────────────────────────────────────────────────────────────

// DeleteTool handles the mem_delete MCP tool.
type DeleteTool struct {
	pool *memory.Pool
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(pool *memory.Pool) *DeleteTool {
	return &DeleteTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_delete",
		mcp.WithDescription(
			"Delete one record by namespace and key. Deleting a missing record succeeds.",
		),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace path, '/'-joined"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Record key within the namespace"),
		),
	)
}

// Handle processes the mem_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mem, err := namespaceArg(t.pool, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	if err := mem.Delete(ctx, key); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete record: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %q from namespace %s", key, mem.Namespace().Path())), nil
}
