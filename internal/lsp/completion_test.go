package lsp

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/leapstack-labs/nvgtls/internal/assist"
	"github.com/leapstack-labs/nvgtls/internal/catalog"
	"github.com/leapstack-labs/nvgtls/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	c, err := catalog.New([]catalog.Function{
		{Name: "alert", Params: []string{"title", "text"}, Description: "Shows a **message** box."},
		{Name: "clamp", Params: []string{"value", "min", "max"}, Description: "Clamps a value."},
		{Name: "exit", Params: []string{}, Description: ""},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	return &Server{
		documents: NewDocumentStore(),
		session:   assist.NewSession(c, nil),
		logger:    testutil.NewTestLogger(t),
	}
}

func sigParams(uri string, line, character uint32) SignatureHelpParams {
	return SignatureHelpParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: line, Character: character},
		},
	}
}

func TestServer_GetCompletions(t *testing.T) {
	server := newTestServer(t)

	items := server.getCompletions()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.Label != "alert" {
		t.Errorf("expected first label alert, got %q", first.Label)
	}
	if first.Kind != CompletionItemKindFunction {
		t.Errorf("expected Function kind, got %d", first.Kind)
	}
	if first.InsertText != "alert(" {
		t.Errorf("expected insert text %q, got %q", "alert(", first.InsertText)
	}
	if first.Detail != "alert(title, text)" {
		t.Errorf("expected detail %q, got %q", "alert(title, text)", first.Detail)
	}
	if first.Documentation == nil || first.Documentation.Kind != MarkupKindMarkdown {
		t.Fatal("expected markdown documentation")
	}
	if first.Documentation.Value != "Shows a **message** box." {
		t.Errorf("unexpected documentation %q", first.Documentation.Value)
	}

	if items[2].Detail != "exit()" {
		t.Errorf("expected exit() detail, got %q", items[2].Detail)
	}
}

func TestCompletionItem_WireFields(t *testing.T) {
	server := newTestServer(t)

	data, err := json.Marshal(server.getCompletions()[0])
	if err != nil {
		t.Fatalf("failed to encode item: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	want := "detail,documentation,insertText,kind,label"
	if got := strings.Join(keys, ","); got != want {
		t.Errorf("item fields = %s, want %s", got, want)
	}
}

func TestServer_GetCompletions_NoSession(t *testing.T) {
	server := &Server{documents: NewDocumentStore(), logger: testutil.NewTestLogger(t)}

	items := server.getCompletions()
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %v", items)
	}
}

func TestServer_GetSignatureHelp(t *testing.T) {
	server := newTestServer(t)

	uri := "file:///game/main.nvgt"
	server.documents.Open(uri, "void main() {\n\tx = clamp(1, \n\talert(\"a, b\", \"c\")\n}", 1)

	tests := []struct {
		name          string
		line, char    uint32
		wantNil       bool
		wantSignature uint32
		wantParameter uint32
	}{
		{name: "second clamp parameter", line: 1, char: 14, wantSignature: 1, wantParameter: 1},
		{name: "first clamp parameter", line: 1, char: 11, wantSignature: 1, wantParameter: 0},
		{name: "comma in string ignored", line: 2, char: 14, wantSignature: 0, wantParameter: 1},
		{name: "inside first alert argument", line: 2, char: 9, wantSignature: 0, wantParameter: 0},
		{name: "unknown function", line: 0, char: 10, wantNil: true},
		{name: "before any paren", line: 1, char: 3, wantNil: true},
		{name: "line out of range", line: 9, char: 0, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			help := server.getSignatureHelp(sigParams(uri, tt.line, tt.char))
			if tt.wantNil {
				if help != nil {
					t.Fatalf("expected nil, got %+v", help)
				}
				return
			}
			if help == nil {
				t.Fatal("expected signature help")
			}
			if len(help.Signatures) != 3 {
				t.Errorf("expected all 3 signatures, got %d", len(help.Signatures))
			}
			if help.ActiveSignature != tt.wantSignature {
				t.Errorf("expected active signature %d, got %d", tt.wantSignature, help.ActiveSignature)
			}
			if help.ActiveParameter != tt.wantParameter {
				t.Errorf("expected active parameter %d, got %d", tt.wantParameter, help.ActiveParameter)
			}
		})
	}
}

func TestServer_GetSignatureHelp_Labels(t *testing.T) {
	server := newTestServer(t)

	uri := "file:///game/main.nvgt"
	server.documents.Open(uri, "exit(", 1)

	help := server.getSignatureHelp(sigParams(uri, 0, 5))
	if help == nil {
		t.Fatal("expected signature help")
	}

	clamp := help.Signatures[1]
	if clamp.Label != "clamp(value, min, max)" {
		t.Errorf("unexpected label %q", clamp.Label)
	}
	if len(clamp.Parameters) != 3 || clamp.Parameters[2].Label != "max" {
		t.Errorf("unexpected parameters %+v", clamp.Parameters)
	}
	if clamp.Documentation != "Clamps a value." {
		t.Errorf("unexpected documentation %q", clamp.Documentation)
	}

	exit := help.Signatures[help.ActiveSignature]
	if exit.Parameters == nil {
		t.Error("parameters must encode as an empty array, not null")
	}
}

func TestServer_GetSignatureHelp_UnknownDocument(t *testing.T) {
	server := newTestServer(t)

	if help := server.getSignatureHelp(sigParams("file:///missing.nvgt", 0, 0)); help != nil {
		t.Errorf("expected nil for unknown document, got %+v", help)
	}
}

func TestServer_GetHover(t *testing.T) {
	server := newTestServer(t)

	uri := "file:///game/main.nvgt"
	server.documents.Open(uri, "x = clamp(y, 0, 1);", 1)

	hover := server.getHover(HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 0, Character: 6},
		},
	})
	if hover == nil {
		t.Fatal("expected hover for clamp")
	}
	if !strings.Contains(hover.Contents.Value, "clamp(value, min, max)") {
		t.Errorf("hover should contain the signature, got %q", hover.Contents.Value)
	}
	if !strings.Contains(hover.Contents.Value, "Clamps a value.") {
		t.Error("hover should contain the description")
	}
	if hover.Range == nil || hover.Range.Start.Character != 4 || hover.Range.End.Character != 9 {
		t.Errorf("unexpected hover range %+v", hover.Range)
	}

	miss := server.getHover(HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 0, Character: 0},
		},
	})
	if miss != nil {
		t.Errorf("expected no hover for a variable, got %+v", miss)
	}
}
