package memtools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/store"
)

// SaveTool handles the mem_save MCP tool.
type SaveTool struct {
	pool *memory.Pool
}

// NewSaveTool creates a SaveTool backed by the shared pool.
func NewSaveTool(pool *memory.Pool) *SaveTool {
	return &SaveTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_save",
		mcp.WithDescription(
			"Save a record to persistent shared memory. Writing the same namespace+key again replaces the value (last writer wins).",
		),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace path, '/'-joined (e.g. 'myproj/prod/planner/session-042')"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Record key within the namespace (e.g. 'evidence/db-schema')"),
		),
		mcp.WithObject("value",
			mcp.Description("Structured value to store. Pass a string instead for raw text."),
		),
		mcp.WithString("data_type",
			mcp.Description("Free-form category label (e.g. 'evidence', 'refinement_history')"),
		),
		mcp.WithObject("tags",
			mcp.Description("Flat metadata object used by mem_search tag containment"),
		),
		mcp.WithNumber("ttl_seconds",
			mcp.Description("Seconds until the record expires. 0 expires immediately; omit for no expiry."),
		),
	)
}

// Handle processes the mem_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mem, err := namespaceArg(t.pool, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	value, err := valueArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := tagsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := store.PutOptions{
		DataType: req.GetString("data_type", ""),
		Tags:     tags,
	}
	if raw, ok := req.GetArguments()["ttl_seconds"].(float64); ok {
		ttl := time.Duration(raw * float64(time.Second))
		opts.TTL = &ttl
	}

	if err := mem.Save(ctx, key, value, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save record: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %q in namespace %s", key, mem.Namespace().Path())), nil
}
