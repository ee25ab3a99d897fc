// Package catalog holds the static set of NVGT functions that drive completion
// and signature help.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern is the grammar every function name must match.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Function describes one callable function known to the editor.
type Function struct {
	Name        string   `json:"name" yaml:"name"`
	Params      []string `json:"params" yaml:"params"`
	Description string   `json:"description" yaml:"description"`
}

// Signature renders the function as "name(p1, p2)".
func (f Function) Signature() string {
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.Params, ", "))
}

// Catalog is an immutable, ordered collection of functions.
// It is safe for concurrent use since nothing mutates it after construction.
type Catalog struct {
	functions []Function
	byName    map[string]int
}

// New builds a catalog from the given functions, validating each entry.
// The slice is copied; order is preserved.
func New(functions []Function) (*Catalog, error) {
	c := &Catalog{
		functions: make([]Function, 0, len(functions)),
		byName:    make(map[string]int, len(functions)),
	}

	for i, fn := range functions {
		if err := validate(i, fn); err != nil {
			return nil, err
		}
		if first, dup := c.byName[fn.Name]; dup {
			return nil, &ValidationError{
				Index:  i,
				Field:  "name",
				Reason: fmt.Sprintf("duplicate function %q (first defined at entry %d)", fn.Name, first),
			}
		}

		params := make([]string, len(fn.Params))
		copy(params, fn.Params)
		c.byName[fn.Name] = len(c.functions)
		c.functions = append(c.functions, Function{
			Name:        fn.Name,
			Params:      params,
			Description: fn.Description,
		})
	}

	return c, nil
}

// Empty returns a catalog with no functions.
func Empty() *Catalog {
	return &Catalog{byName: map[string]int{}}
}

func validate(i int, fn Function) error {
	if fn.Name == "" {
		return &ValidationError{Index: i, Field: "name", Reason: "must not be empty"}
	}
	if !identPattern.MatchString(fn.Name) {
		return &ValidationError{Index: i, Field: "name", Reason: fmt.Sprintf("%q is not a valid identifier", fn.Name)}
	}
	return nil
}

// Len returns the number of functions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.functions)
}

// Functions returns a copy of all functions in declaration order.
func (c *Catalog) Functions() []Function {
	if c == nil {
		return nil
	}
	out := make([]Function, len(c.functions))
	copy(out, c.functions)
	return out
}

// At returns the function at position i.
func (c *Catalog) At(i int) Function {
	return c.functions[i]
}

// Index returns the position of the function with exactly the given name,
// or -1. Matching is case-sensitive.
func (c *Catalog) Index(name string) int {
	if c == nil {
		return -1
	}
	if i, ok := c.byName[name]; ok {
		return i
	}
	return -1
}

// Lookup returns the function with exactly the given name.
func (c *Catalog) Lookup(name string) (Function, bool) {
	i := c.Index(name)
	if i < 0 {
		return Function{}, false
	}
	return c.functions[i], true
}

// TriggerCharacters returns the first character of every function name,
// deduplicated, in catalog order.
func (c *Catalog) TriggerCharacters() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var chars []string
	for _, fn := range c.functions {
		ch := fn.Name[:1]
		if seen[ch] {
			continue
		}
		seen[ch] = true
		chars = append(chars, ch)
	}
	return chars
}
