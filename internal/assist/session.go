// Package assist ties the function catalog to the completion and signature
// help operations a host editor calls into.
package assist

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/leapstack-labs/nvgtls/internal/catalog"
	"github.com/leapstack-labs/nvgtls/internal/signature"
)

// ErrSessionClosed is returned by operations on a session after Shutdown.
var ErrSessionClosed = errors.New("assist session is shut down")

// CompletionEntry is one presentable completion suggestion.
type CompletionEntry struct {
	Label         string
	InsertText    string
	Detail        string
	Documentation string // Markdown
}

// SignatureInfo is one function signature as shown in a signature popup.
type SignatureInfo struct {
	Label         string
	Documentation string
	Parameters    []string
}

// SignatureHelp is the full popup content: every catalog signature plus which
// one, and which of its parameters, is active.
type SignatureHelp struct {
	Signatures      []SignatureInfo
	ActiveSignature int
	ActiveParameter int
}

// Session holds the loaded catalog for the lifetime of an editor session.
type Session struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	closed  atomic.Bool
}

// Initialize loads the catalog at path and starts a session. A missing or
// malformed catalog fails the whole session.
func Initialize(path string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	logger.Info("Loaded function catalog", "path", path, "functions", c.Len())
	return NewSession(c, logger), nil
}

// NewSession starts a session over an already-built catalog.
func NewSession(c *catalog.Catalog, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = catalog.Empty()
	}
	return &Session{catalog: c, logger: logger}
}

// Shutdown ends the session. It is safe to call more than once.
func (s *Session) Shutdown() {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Info("Session shut down")
	}
}

// Catalog returns the session catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Completions returns one entry per catalog function, in catalog order.
// The list is never filtered; the host filters by what the user typed.
func (s *Session) Completions() ([]CompletionEntry, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	functions := s.catalog.Functions()
	entries := make([]CompletionEntry, 0, len(functions))
	for _, fn := range functions {
		entries = append(entries, CompletionEntry{
			Label:         fn.Name,
			InsertText:    fn.Name + "(",
			Detail:        fn.Signature(),
			Documentation: fn.Description,
		})
	}
	return entries, nil
}

// SignatureHelp resolves the call around offset on line. It returns nil when
// the cursor is not inside a known function call; hosts must then hide any
// popup already on screen.
func (s *Session) SignatureHelp(line string, offset int) (*SignatureHelp, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	resolved, ok := signature.Resolve(line, offset, s.catalog)
	if !ok {
		s.logger.Debug("No active call", "offset", offset)
		return nil, nil
	}

	s.logger.Debug("Resolved call",
		"function", resolved.Function.Name,
		"active_parameter", resolved.ActiveParameter)

	functions := s.catalog.Functions()
	sigs := make([]SignatureInfo, 0, len(functions))
	for _, fn := range functions {
		sigs = append(sigs, SignatureInfo{
			Label:         fn.Signature(),
			Documentation: fn.Description,
			Parameters:    fn.Params,
		})
	}

	return &SignatureHelp{
		Signatures:      sigs,
		ActiveSignature: resolved.Index,
		ActiveParameter: resolved.ActiveParameter,
	}, nil
}

// Describe returns the catalog function named exactly word, for hover.
func (s *Session) Describe(word string) (catalog.Function, bool) {
	if s.closed.Load() {
		return catalog.Function{}, false
	}
	return s.catalog.Lookup(word)
}
