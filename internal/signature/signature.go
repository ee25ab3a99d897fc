// Package signature resolves which catalog function call the cursor sits in
// and which of its parameters is active.
//
// Resolution is line-local and stateless: every request rescans the line from
// scratch. The active call is the one opened by the last literal '(' before
// the cursor, and string literals are tracked with a single toggle shared by
// both quote characters.
package signature

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/nvgtls/internal/catalog"
)

// trailingIdent matches the identifier that ends a string.
var trailingIdent = regexp.MustCompile(`[A-Za-z0-9_]+$`)

// CallContext is the call the cursor is inside, as inferred from one line.
type CallContext struct {
	FunctionName string // Identifier before the open paren; empty if none
	ArgsText     string // Text between the open paren and the cursor
}

// Resolved is a call context matched against the catalog.
type Resolved struct {
	Function        catalog.Function
	Index           int // Position of Function in the catalog
	ActiveParameter int // Zero-based, not clamped to len(Function.Params)
}

// ResolveCallContext finds the call opened by the last '(' before offset.
// Offsets outside [0, len(line)] are clamped. It reports false when there is
// no '(' before the cursor.
func ResolveCallContext(line string, offset int) (CallContext, bool) {
	offset = max(0, min(offset, len(line)))
	upTo := line[:offset]

	open := strings.LastIndexByte(upTo, '(')
	if open < 0 {
		return CallContext{}, false
	}

	before := strings.TrimSpace(upTo[:open])
	return CallContext{
		FunctionName: trailingIdent.FindString(before),
		ArgsText:     upTo[open+1:],
	}, true
}

// ActiveParameterIndex counts the commas in args that are outside quotes.
// A '"' and a '\'' flip the same flag, and there is no escape handling.
func ActiveParameterIndex(args string) int {
	inString := false
	count := 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '"', '\'':
			inString = !inString
		case ',':
			if !inString {
				count++
			}
		}
	}
	return count
}

// Select looks up name in the catalog and computes the active parameter.
// It reports false when the name is not a catalog function, which callers
// must treat as "no signature to show".
func Select(name, args string, c *catalog.Catalog) (Resolved, bool) {
	i := c.Index(name)
	if i < 0 {
		return Resolved{}, false
	}
	return Resolved{
		Function:        c.At(i),
		Index:           i,
		ActiveParameter: ActiveParameterIndex(args),
	}, true
}

// Resolve runs the whole pipeline for one line and cursor offset.
func Resolve(line string, offset int, c *catalog.Catalog) (Resolved, bool) {
	cc, ok := ResolveCallContext(line, offset)
	if !ok {
		return Resolved{}, false
	}
	return Select(cc.FunctionName, cc.ArgsText, c)
}
