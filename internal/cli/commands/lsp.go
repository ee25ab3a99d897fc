package commands

import (
	"os"

	"github.com/leapstack-labs/nvgtls/internal/cli/config"
	"github.com/leapstack-labs/nvgtls/internal/lsp"
	"github.com/spf13/cobra"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC and offers
completion, signature help and hover for NVGT scripts.

The function catalog is chosen on initialize, in this order:
  1. initializationOptions.catalogPath from the client
  2. catalog_path in the workspace's nvgtls.yaml
  3. catalog_path from this command's configuration (--catalog, NVGTLS_CATALOG_PATH)

Logs go to stderr or log_file; stdout carries the protocol. A log_level in the
workspace's nvgtls.yaml overrides this command's level once the client connects.`,
		Example: `  # Start LSP server (usually called by an editor)
  nvgtls lsp

  # Fall back to a specific catalog
  nvgtls lsp --catalog ~/nvgt/functions.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command, version string) error {
	cfg := config.GetConfig(cmd.Context())
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{
		CatalogPath: cfg.CatalogPath,
		Version:     version,
		Logger:      config.GetLogger(cmd.Context()),
		Level:       config.GetLevel(cmd.Context()),
	})
	return server.Run()
}
