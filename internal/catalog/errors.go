package catalog

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when a catalog source has an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// ValidationError reports a structurally invalid catalog entry.
type ValidationError struct {
	Index  int    // Zero-based entry position in the source
	Field  string // Offending field: name, params or description
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog entry %d: %s %s", e.Index, e.Field, e.Reason)
}
