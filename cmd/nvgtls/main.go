// Package main is the entry point for the nvgtls CLI and language server.
package main

import (
	"os"

	"github.com/leapstack-labs/nvgtls/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
