package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/store"
)

// SearchTool handles the mem_search MCP tool.
type SearchTool struct {
	pool *memory.Pool
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(pool *memory.Pool) *SearchTool {
	return &SearchTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription(
			"Search records within a namespace. Filters combine conjunctively; tag filters match records whose tags contain every given pair.",
		),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace path, '/'-joined"),
		),
		mcp.WithString("key_pattern",
			mcp.Description("Glob-style key filter: * matches any run, ? matches one character (e.g. 'evidence/*')"),
		),
		mcp.WithString("data_type",
			mcp.Description("Exact data_type filter"),
		),
		mcp.WithObject("tags",
			mcp.Description("Tag pairs the record's tags must contain"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default 20, server-capped)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Results to skip, for pagination"),
		),
		mcp.WithString("order_by",
			mcp.Description("Sort field: updated_at (default) or key"),
		),
		mcp.WithString("order",
			mcp.Description("Sort direction: asc or desc (default: desc)"),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mem, err := namespaceArg(t.pool, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := tagsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := store.SearchOptions{
		KeyPattern: req.GetString("key_pattern", ""),
		DataType:   req.GetString("data_type", ""),
		Tags:       tags,
		Limit:      intArg(req, "limit", 20),
		Offset:     intArg(req, "offset", 0),
	}
	switch req.GetString("order_by", "") {
	case "", "updated_at":
		opts.OrderBy = store.OrderByUpdatedAt
	case "key":
		opts.OrderBy = store.OrderByKey
	default:
		return mcp.NewToolResultError("'order_by' must be 'updated_at' or 'key'"), nil
	}
	switch req.GetString("order", "") {
	case "":
		// field default
	case "asc":
		opts.OrderDirection = store.OrderAsc
	case "desc":
		opts.OrderDirection = store.OrderDesc
	default:
		return mcp.NewToolResultError("'order' must be 'asc' or 'desc'"), nil
	}

	results, err := mem.Search(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No matching records."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d result(s) in %s:\n", len(results), mem.Namespace().Path())
	for _, r := range results {
		fmt.Fprintf(&b, "\n— %s", r.Key)
		if r.DataType != "" {
			fmt.Fprintf(&b, " (%s)", r.DataType)
		}
		fmt.Fprintf(&b, "\n  updated: %s\n  %s\n",
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
			indent(renderValue(r.Value)))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
