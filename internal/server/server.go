// Package server wires the MCP components and creates the server
// instance.
//
// This is the composition root: it opens the shared memory pool and
// injects it into the tool handlers. No business logic lives here —
// only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/memtools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all memory tools
// registered.
//
// The returned cleanup function closes the memory pool (and with it the
// store's database connections) and must be called on shutdown,
// typically via defer. It is always non-nil.
func New(cfg config.Config, log *zap.Logger) (*server.MCPServer, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}

	pool, err := memory.Open(cfg.Store, log.Named("memory"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening memory pool: %w", err)
	}
	cleanup := func() {
		if err := pool.Close(); err != nil {
			log.Warn("memory pool close failed", zap.Error(err))
		}
	}

	s := server.NewMCPServer(
		"planloop",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerMemoryTools(s, pool)
	log.Info("server wired", zap.String("version", Version))

	return s, cleanup, nil
}

// registerMemoryTools registers the record-store MCP tools.
func registerMemoryTools(s *server.MCPServer, pool *memory.Pool) {
	saveTool := memtools.NewSaveTool(pool)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	getTool := memtools.NewGetTool(pool)
	s.AddTool(getTool.Definition(), getTool.Handle)

	deleteTool := memtools.NewDeleteTool(pool)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	searchTool := memtools.NewSearchTool(pool)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	batchTool := memtools.NewBatchSaveTool(pool)
	s.AddTool(batchTool.Definition(), batchTool.Handle)

	statsTool := memtools.NewStatsTool(pool)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// serverInstructions tells the client how to use the memory tools
// effectively.
func serverInstructions() string {
	return `You have access to planloop, a shared persistent memory for planning agents.

## Namespaces
Every record lives in a namespace — a '/'-joined path, conventionally
project/environment/agent-type/session (e.g. "shop/prod/planner/session-042").
Agents in different namespaces never see each other's records. Choose the
namespace once per session and reuse it on every call.

## Tools
- mem_save: upsert one record (structured object or raw text). Saving the same
  namespace+key again replaces the value. Pass ttl_seconds for data that should
  expire; omit it for durable facts.
- mem_get: load one record by key. Expired records read as missing.
- mem_delete: remove one record. Deleting a missing record succeeds.
- mem_search: filter records by key pattern (glob: * and ?), data_type, and
  tags. Tag filters match containment: a record matches when its tags include
  every requested pair. Use limit/offset for pagination.
- mem_save_batch: write several related records in one atomic transaction.
  Use it whenever facts must stay consistent with each other — partial writes
  never happen.
- mem_stats: aggregate counts, for diagnostics.

## Conventions
- Key evidence under "evidence/<topic>" and round audit records under
  "history/round-NNN" so they can be searched with key patterns.
- Set data_type consistently ("evidence", "refinement_history", "plan") —
  searches filter on it exactly.
- Tags are flat metadata for search, not storage: keep the payload in the value.`
}
