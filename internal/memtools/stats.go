package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/planloop/planloop/internal/memory"
)

// StatsTool handles the mem_stats MCP tool.
type StatsTool struct {
	pool *memory.Pool
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(pool *memory.Pool) *StatsTool {
	return &StatsTool{pool: pool}
}

// Definition returns the MCP tool definition for mem_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_stats",
		mcp.WithDescription("Report aggregate record-store statistics across all namespaces."),
	)
}

// Handle processes the mem_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.pool.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to collect stats: %v", err)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Live records: %d\nNamespaces: %d\n", stats.TotalRecords, len(stats.Namespaces))
	for _, ns := range stats.Namespaces {
		fmt.Fprintf(&b, "  - %s\n", ns)
	}
	return mcp.NewToolResultText(b.String()), nil
}
