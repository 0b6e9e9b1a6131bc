// planloop: shared persistent memory for planning agents, served over MCP.
//
// Usage:
//
//	planloop serve             # Start MCP server (stdio transport)
//	planloop serve -config f   # Start with an explicit config file
package main

import (
	"flag"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/logging"
	"github.com/planloop/planloop/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("planloop v%s\n", server.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("PLANLOOP_CONFIG"), "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, cleanup, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Info("serving MCP over stdio",
		zap.String("version", server.Version),
		zap.String("data_dir", cfg.Store.DataDir))

	// ServeStdio installs its own signal handling and returns once the
	// client disconnects or the process is interrupted; the deferred
	// cleanup then closes the pool.
	return mcpserver.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `planloop v%s — shared persistent memory for planning agents (MCP)

Usage:
  planloop serve [-config path]   Start the MCP server (stdio transport)
  planloop version                Print the version

Configuration:
  Settings load from defaults, then the YAML file (-config flag or
  PLANLOOP_CONFIG), then PLANLOOP_* environment variables.

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "planloop": {
        "command": "planloop",
        "args": ["serve"]
      }
    }
  }
`, server.Version)
}
