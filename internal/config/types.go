// Package config provides the project configuration shared by the CLI and the
// language server. It is decoupled from CLI concerns so the server can load a
// workspace's nvgtls.yaml on initialize.
package config

// ProjectConfig holds the settings a workspace may pin in nvgtls.yaml.
type ProjectConfig struct {
	// CatalogPath is the function catalog (JSON or YAML), relative to the project root.
	CatalogPath string `koanf:"catalog_path"`

	// LogLevel is one of debug, info, warn, error. Empty leaves the server's level alone.
	LogLevel string `koanf:"log_level"`
}
