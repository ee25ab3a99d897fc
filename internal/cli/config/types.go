// Package config provides configuration management for the nvgtls CLI.
//
// It layers the project settings from internal/config with CLI-only fields
// (log destination, verbosity) and resolves them from defaults, nvgtls.yaml,
// NVGTLS_* environment variables and flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/nvgtls/internal/config"
)

// Config holds all CLI configuration options.
type Config struct {
	CatalogPath string `koanf:"catalog_path"`
	LogLevel    string `koanf:"log_level"`
	LogFile     string `koanf:"log_file"`
	Verbose     bool   `koanf:"verbose"`
	Output      string `koanf:"output"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - catalog and log level come from internal/config
const (
	DefaultCatalogPath = sharedcfg.DefaultCatalogPath
	DefaultLogLevel    = sharedcfg.DefaultLogLevel
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
