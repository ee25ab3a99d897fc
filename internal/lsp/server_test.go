package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/nvgtls/internal/testutil"
)

const testCatalog = `[
  {"name": "alert", "params": ["title", "text"], "description": "Shows a message box."},
  {"name": "clamp", "params": ["value", "min", "max"], "description": "Clamps a value."},
  {"name": "wait", "params": ["ms"], "description": "Pauses the script."}
]`

// frame encodes a client message with Content-Length framing.
func frame(t *testing.T, buf *bytes.Buffer, id int, method string, params any) {
	t.Helper()

	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if id > 0 {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", method, err)
	}
	fmt.Fprintf(buf, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

// readAll decodes every framed message the server wrote.
func readAll(t *testing.T, out *bytes.Buffer) []*JSONRPCMessage {
	t.Helper()

	reader := &Server{reader: bufio.NewReader(out)}
	var msgs []*JSONRPCMessage
	for out.Len() > 0 || reader.reader.Buffered() > 0 {
		msg, err := reader.readMessage()
		if err != nil {
			t.Fatalf("failed to read server output: %v", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func responseFor(msgs []*JSONRPCMessage, id int) *JSONRPCMessage {
	want := fmt.Sprint(id)
	for _, m := range msgs {
		if m.ID != nil && string(*m.ID) == want {
			return m
		}
	}
	return nil
}

func runSession(t *testing.T, opts Options, write func(in *bytes.Buffer)) []*JSONRPCMessage {
	t.Helper()

	var in, out bytes.Buffer
	write(&in)

	opts.Logger = testutil.NewTestLogger(t)
	server := NewServer(&in, &out, opts)
	if err := server.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return readAll(t, &out)
}

func TestServer_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "functions.json"), []byte(testCatalog), 0o600); err != nil {
		t.Fatal(err)
	}

	uri := PathToURI(filepath.Join(dir, "main.nvgt"))
	position := func(line, char int) map[string]any {
		return map[string]any{
			"textDocument": map[string]any{"uri": uri},
			"position":     map[string]any{"line": line, "character": char},
		}
	}

	msgs := runSession(t, Options{Version: "test"}, func(in *bytes.Buffer) {
		frame(t, in, 1, "initialize", map[string]any{
			"processId":             nil,
			"rootUri":               PathToURI(dir),
			"initializationOptions": map[string]any{"catalogPath": "functions.json"},
		})
		frame(t, in, 0, "initialized", map[string]any{})
		frame(t, in, 0, "textDocument/didOpen", map[string]any{
			"textDocument": map[string]any{
				"uri": uri, "languageId": "nvgt", "version": 1,
				"text": "void main() {\n\tx = clamp(1, \n}",
			},
		})
		frame(t, in, 2, "textDocument/completion", position(1, 5))
		frame(t, in, 3, "textDocument/signatureHelp", position(1, 14))
		frame(t, in, 4, "textDocument/signatureHelp", position(0, 2))
		frame(t, in, 5, "textDocument/hover", position(1, 6))
		frame(t, in, 6, "textDocument/definition", position(1, 6))
		frame(t, in, 7, "shutdown", nil)
	})

	initResp := responseFor(msgs, 1)
	if initResp == nil {
		t.Fatal("missing initialize response")
	}
	var result InitializeResult
	if err := json.Unmarshal(initResp.Result, &result); err != nil {
		t.Fatalf("failed to decode initialize result: %v", err)
	}
	if result.Capabilities.CompletionProvider == nil {
		t.Fatal("completion should be advertised when the catalog loads")
	}
	if got := strings.Join(result.Capabilities.CompletionProvider.TriggerCharacters, ""); got != "acw" {
		t.Errorf("expected trigger characters a, c, w; got %q", got)
	}
	if result.Capabilities.SignatureHelpProvider == nil {
		t.Fatal("signature help should be advertised")
	}
	if got := result.Capabilities.SignatureHelpProvider.TriggerCharacters; len(got) != 2 || got[0] != "(" || got[1] != "," {
		t.Errorf("unexpected signature trigger characters %v", got)
	}
	if result.ServerInfo == nil || result.ServerInfo.Version != "test" {
		t.Errorf("unexpected server info %+v", result.ServerInfo)
	}

	for _, m := range msgs {
		if m.Method == "window/showMessage" {
			t.Error("no error message expected when the catalog loads")
		}
	}

	var list CompletionList
	if err := json.Unmarshal(responseFor(msgs, 2).Result, &list); err != nil {
		t.Fatalf("failed to decode completion: %v", err)
	}
	if len(list.Items) != 3 || list.Items[1].InsertText != "clamp(" {
		t.Errorf("unexpected completion items %+v", list.Items)
	}

	var help SignatureHelp
	if err := json.Unmarshal(responseFor(msgs, 3).Result, &help); err != nil {
		t.Fatalf("failed to decode signature help: %v", err)
	}
	if help.ActiveSignature != 1 || help.ActiveParameter != 1 {
		t.Errorf("expected clamp parameter 1, got signature %d parameter %d", help.ActiveSignature, help.ActiveParameter)
	}

	if got := string(responseFor(msgs, 4).Result); got != "null" {
		t.Errorf("expected null signature help outside a call, got %s", got)
	}

	var hover Hover
	if err := json.Unmarshal(responseFor(msgs, 5).Result, &hover); err != nil {
		t.Fatalf("failed to decode hover: %v", err)
	}
	if !strings.Contains(hover.Contents.Value, "clamp(value, min, max)") {
		t.Errorf("unexpected hover %q", hover.Contents.Value)
	}

	unknown := responseFor(msgs, 6)
	if unknown == nil || unknown.Error == nil || unknown.Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", unknown)
	}

	if shutdown := responseFor(msgs, 7); shutdown == nil || string(shutdown.Result) != "null" {
		t.Errorf("expected null shutdown result, got %+v", shutdown)
	}
}

func TestServer_CatalogFailureDisablesFeatures(t *testing.T) {
	dir := t.TempDir()

	msgs := runSession(t, Options{CatalogPath: filepath.Join(dir, "missing.json")}, func(in *bytes.Buffer) {
		frame(t, in, 1, "initialize", map[string]any{"rootUri": PathToURI(dir)})
		frame(t, in, 0, "initialized", map[string]any{})
		frame(t, in, 2, "textDocument/completion", map[string]any{
			"textDocument": map[string]any{"uri": PathToURI(filepath.Join(dir, "a.nvgt"))},
			"position":     map[string]any{"line": 0, "character": 0},
		})
	})

	var result InitializeResult
	if err := json.Unmarshal(responseFor(msgs, 1).Result, &result); err != nil {
		t.Fatalf("failed to decode initialize result: %v", err)
	}
	if result.Capabilities.CompletionProvider != nil {
		t.Error("completion must not be advertised without a catalog")
	}
	if result.Capabilities.SignatureHelpProvider != nil {
		t.Error("signature help must not be advertised without a catalog")
	}
	if result.Capabilities.TextDocumentSync == nil {
		t.Error("document sync should still be advertised")
	}

	var shown *ShowMessageParams
	for _, m := range msgs {
		if m.Method == "window/showMessage" {
			shown = &ShowMessageParams{}
			if err := json.Unmarshal(m.Params, shown); err != nil {
				t.Fatal(err)
			}
		}
	}
	if shown == nil || shown.Type != MessageTypeError {
		t.Fatalf("expected an error showMessage, got %+v", shown)
	}

	var list CompletionList
	if err := json.Unmarshal(responseFor(msgs, 2).Result, &list); err != nil {
		t.Fatalf("failed to decode completion: %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("expected no completions, got %d", len(list.Items))
	}
}

func TestServer_ProjectConfigCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "fns.json"), []byte(testCatalog), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nvgtls.yaml"), []byte("catalog_path: data/fns.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	msgs := runSession(t, Options{CatalogPath: filepath.Join(dir, "ignored.json")}, func(in *bytes.Buffer) {
		frame(t, in, 1, "initialize", map[string]any{"rootUri": PathToURI(dir)})
	})

	var result InitializeResult
	if err := json.Unmarshal(responseFor(msgs, 1).Result, &result); err != nil {
		t.Fatalf("failed to decode initialize result: %v", err)
	}
	if result.Capabilities.CompletionProvider == nil {
		t.Error("catalog from nvgtls.yaml should load")
	}
}

func TestServer_ProjectConfigLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		want   slog.Level
		logged string
	}{
		{"debug from workspace", "log_level: debug\n", slog.LevelDebug, "Using log level from project config"},
		{"unset keeps level", "catalog_path: fns.json\n", slog.LevelWarn, ""},
		{"invalid keeps level", "log_level: loud\n", slog.LevelWarn, "Ignoring project log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "nvgtls.yaml"), []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}

			var in, out bytes.Buffer
			frame(t, &in, 1, "initialize", map[string]any{"rootUri": PathToURI(dir)})

			level := new(slog.LevelVar)
			level.Set(slog.LevelWarn)
			logs := &testutil.LogBuffer{}
			server := NewServer(&in, &out, Options{
				Logger: slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: level})),
				Level:  level,
			})
			if err := server.Run(); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			if got := level.Level(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
			if tt.logged != "" && !strings.Contains(logs.String(), tt.logged) {
				t.Errorf("expected log %q, got:\n%s", tt.logged, logs.String())
			}
		})
	}
}

func TestServer_ReadMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing length", "X-Other: 1\r\n\r\n{}"},
		{"bad length", "Content-Length: abc\r\n\r\n{}"},
		{"bad json", "Content-Length: 3\r\n\r\n{x}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{reader: bufio.NewReader(strings.NewReader(tt.input))}
			if _, err := s.readMessage(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
