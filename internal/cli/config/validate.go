package config

import (
	"fmt"
	"log/slog"
	"strings"

	sharedcfg "github.com/leapstack-labs/nvgtls/internal/config"
)

var validOutputs = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	for _, o := range validOutputs {
		if c.Output == o {
			return nil
		}
	}
	return fmt.Errorf("invalid output %q (expected one of %s)", c.Output, strings.Join(validOutputs, ", "))
}

// ParseLevel maps a log_level setting onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	return sharedcfg.ParseLevel(s)
}
