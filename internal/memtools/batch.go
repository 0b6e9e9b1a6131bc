package memtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/store"
)

// BatchSaveTool handles the mem_save_batch MCP tool.
type BatchSaveTool struct {
	pool *memory.Pool
}

// NewBatchSaveTool creates a BatchSaveTool.
func NewBatchSaveTool(pool *memory.Pool) *BatchSaveTool {
	return &BatchSaveTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_save_batch.
func (t *BatchSaveTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_save_batch",
		mcp.WithDescription(
			"Save several records in one atomic transaction: every item commits or none do. "+
				"Use for groups of related facts that must stay consistent.",
		),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace path, '/'-joined; shared by all items"),
		),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description(`Array of {"key", "value", "data_type"?, "tags"?} objects`),
		),
	)
}

// Handle processes the mem_save_batch tool call.
func (t *BatchSaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mem, err := namespaceArg(t.pool, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rawItems, ok := req.GetArguments()["items"].([]any)
	if !ok {
		return mcp.NewToolResultError("'items' must be an array of objects"), nil
	}
	items := make([]store.BatchItem, 0, len(rawItems))
	for i, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("items[%d] must be an object", i)), nil
		}
		item, err := batchItem(obj)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("items[%d]: %v", i, err)), nil
		}
		items = append(items, item)
	}

	if err := mem.SaveMany(ctx, items); err != nil {
		var batchErr *store.BatchWriteError
		if errors.As(err, &batchErr) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"batch rolled back: item %q failed: %v", batchErr.Key, batchErr.Cause)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("batch save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Saved %d record(s) atomically in namespace %s", len(items), mem.Namespace().Path())), nil
}

func batchItem(obj map[string]any) (store.BatchItem, error) {
	key, _ := obj["key"].(string)
	if key == "" {
		return store.BatchItem{}, fmt.Errorf("'key' is required")
	}

	var value store.Value
	switch v := obj["value"].(type) {
	case map[string]any:
		value = store.Structured(v)
	case string:
		value = store.Raw(v)
	default:
		return store.BatchItem{}, fmt.Errorf("'value' must be an object or a string (got %T)", obj["value"])
	}

	item := store.BatchItem{Key: key, Value: value}
	if dt, ok := obj["data_type"].(string); ok {
		item.DataType = dt
	}
	if tags, ok := obj["tags"].(map[string]any); ok {
		item.Tags = tags
	}
	return item, nil
}
