package lsp

import (
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"
)

// Document represents an open text document in the editor.
type Document struct {
	URI     string // Document URI (file:///path/to/script.nvgt)
	Content string // Full document content
	Version int    // Version number, incremented on each change
	Lines   []int  // Byte offsets of line starts for fast position lookups
}

// DocumentStore manages open documents in memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[uri] = newDocument(uri, content, version)
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri)
}

// Get retrieves a document by URI.
// Documents are replaced, never mutated, so the result is safe to read without the lock.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[uri]
}

// Update replaces an open document's content. Unknown URIs are ignored.
func (s *DocumentStore) Update(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[uri]; ok {
		s.documents[uri] = newDocument(uri, content, version)
	}
}

func newDocument(uri, content string, version int) *Document {
	return &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
}

// computeLineOffsets calculates byte offsets for each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0}

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

// GetLine returns the content of a line without its line terminator.
func (d *Document) GetLine(line int) string {
	if d == nil || line < 0 || line >= len(d.Lines) {
		return ""
	}

	start := d.Lines[line]
	end := len(d.Content)
	if line+1 < len(d.Lines) {
		end = d.Lines[line+1] - 1
	}

	return strings.TrimSuffix(d.Content[start:end], "\r")
}

// LineAt returns the text of pos.Line and the cursor's byte offset within it.
// LSP characters count UTF-16 code units; offsets past the line end are clamped.
func (d *Document) LineAt(pos Position) (string, int) {
	text := d.GetLine(int(pos.Line))
	return text, utf16ToByteOffset(text, int(pos.Character))
}

// utf16ToByteOffset converts a UTF-16 column into a byte offset in line.
func utf16ToByteOffset(line string, character int) int {
	units := 0
	for i, r := range line {
		if units >= character {
			return i
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return len(line)
}

// byteToUTF16Offset converts a byte offset in line into a UTF-16 column.
func byteToUTF16Offset(line string, offset int) int {
	units := 0
	for i, r := range line {
		if i >= offset {
			break
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return units
}

// GetWordAtPosition returns the identifier under the cursor and its range.
func (d *Document) GetWordAtPosition(pos Position) (string, Range) {
	text, offset := d.LineAt(pos)
	if offset >= len(text) && (offset == 0 || !isWordChar(text[offset-1])) {
		return "", Range{Start: pos, End: pos}
	}

	start := offset
	for start > 0 && isWordChar(text[start-1]) {
		start--
	}

	end := offset
	for end < len(text) && isWordChar(text[end]) {
		end++
	}

	if start == end {
		return "", Range{Start: pos, End: pos}
	}

	return text[start:end], Range{
		Start: Position{Line: pos.Line, Character: uint32(byteToUTF16Offset(text, start))}, //nolint:gosec // G115: offsets are bounded by line length
		End:   Position{Line: pos.Line, Character: uint32(byteToUTF16Offset(text, end))},   //nolint:gosec // G115: offsets are bounded by line length
	}
}

// isWordChar returns true if the character is part of an identifier.
func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if !strings.HasPrefix(uri, prefix) {
		return uri
	}
	path := uri[len(prefix):]
	if unescaped, err := url.PathUnescape(path); err == nil && utf8.ValidString(unescaped) {
		return unescaped
	}
	return path
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
