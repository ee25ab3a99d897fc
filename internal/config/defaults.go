package config

import (
	"fmt"
	"log/slog"
)

// Default configuration values.
const (
	DefaultCatalogPath = "data/nvgt_functions.json"
	DefaultLogLevel    = "info"
)

// ParseLevel maps a log_level setting onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

// Level returns the workspace log level. ok is false when nvgtls.yaml does not set one.
func (c *ProjectConfig) Level() (level slog.Level, ok bool, err error) {
	if c == nil || c.LogLevel == "" {
		return slog.LevelInfo, false, nil
	}
	level, err = ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo, false, err
	}
	return level, true, nil
}
