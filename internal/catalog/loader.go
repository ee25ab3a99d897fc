package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a catalog source.
type Format string

// Supported catalog formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// rawFunction mirrors Function with pointer fields so missing keys can be told
// apart from empty values. All three fields are required.
type rawFunction struct {
	Name        *string   `json:"name" yaml:"name"`
	Params      *[]string `json:"params" yaml:"params"`
	Description *string   `json:"description" yaml:"description"`
}

// FormatForPath picks the catalog format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog from raw bytes in the given format.
func Parse(data []byte, format Format) (*Catalog, error) {
	var (
		raw []rawFunction
		err error
	)

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", format, err)
	}
	if raw == nil {
		return nil, errors.New("catalog must be an array of functions")
	}

	functions := make([]Function, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.Name == nil:
			return nil, &ValidationError{Index: i, Field: "name", Reason: "is required"}
		case r.Params == nil:
			return nil, &ValidationError{Index: i, Field: "params", Reason: "is required"}
		case r.Description == nil:
			return nil, &ValidationError{Index: i, Field: "description", Reason: "is required"}
		}
		functions = append(functions, Function{
			Name:        *r.Name,
			Params:      *r.Params,
			Description: *r.Description,
		})
	}

	return New(functions)
}
