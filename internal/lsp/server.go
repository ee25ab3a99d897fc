package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/nvgtls/internal/assist"
	"github.com/leapstack-labs/nvgtls/internal/config"
)

// JSON-RPC error codes used by the server.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
)

// Options configures a Server.
type Options struct {
	CatalogPath string // Fallback catalog when the workspace does not configure one
	Version     string
	Logger      *slog.Logger

	// Level controls Logger's level so a workspace log_level can change it.
	// When nil and Logger is nil, the default logger gets its own LevelVar.
	Level *slog.LevelVar
}

// Server implements the Language Server Protocol for NVGT scripts.
type Server struct {
	// Document management
	documents *DocumentStore

	// Assistance session; nil until initialize succeeds in loading the catalog
	session     *assist.Session
	catalogPath string
	version     string

	// Project context
	projectRoot string
	initialized bool

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Logging
	logger *slog.Logger
	level  *slog.LevelVar

	// Shutdown state
	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	logger, level := opts.Logger, opts.Level
	if logger == nil {
		if level == nil {
			level = new(slog.LevelVar)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return &Server{
		documents:   NewDocumentStore(),
		catalogPath: opts.CatalogPath,
		version:     opts.Version,
		reader:      bufio.NewReader(reader),
		writer:      writer,
		logger:      logger,
		level:       level,
	}
}

// Run starts the server's main loop, processing JSON-RPC messages.
func (s *Server) Run() error {
	s.logger.Info("NVGT language server starting...")

	for {
		if s.isShutdown() {
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				s.logger.Info("Client disconnected")
				s.closeSession()
				return nil
			}
			s.logger.Error("Error reading message", "error", err)
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}
	}
}

func (s *Server) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.shutdown
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads one Content-Length framed message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if lengthStr, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response. A nil result is sent as JSON null.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/signatureHelp":
		return s.handleSignatureHelp(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.projectRoot = URIToPath(params.RootURI)
	s.logger.Info("Project root", "path", s.projectRoot)

	capabilities := ServerCapabilities{
		TextDocumentSync: &TextDocumentSyncOptions{
			OpenClose: true,
			Change:    TextDocumentSyncKindFull,
		},
	}

	project := s.loadProjectConfig()
	s.applyLogLevel(project)

	// Features only register when the catalog loads; a broken catalog disables them for the session.
	path := s.resolveCatalogPath(params.InitializationOptions, project)
	session, err := s.startSession(path)
	if err != nil {
		s.logger.Error("Signature help and completion disabled", "catalog", path, "error", err)
	} else {
		s.session = session
		capabilities.CompletionProvider = &CompletionOptions{
			TriggerCharacters: session.Catalog().TriggerCharacters(),
		}
		capabilities.SignatureHelpProvider = &SignatureHelpOptions{
			TriggerCharacters: []string{"(", ","},
		}
		capabilities.HoverProvider = true
	}

	s.sendResponse(msg.ID, InitializeResult{
		Capabilities: capabilities,
		ServerInfo:   &ServerInfo{Name: "nvgtls", Version: s.version},
	}, nil)
	return nil
}

func (s *Server) startSession(path string) (*assist.Session, error) {
	if path == "" {
		return nil, errors.New("no function catalog configured")
	}
	return assist.Initialize(path, s.logger)
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("Server initialized")

	if s.session == nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeError,
			Message: "NVGT function catalog could not be loaded. Completion and signature help are unavailable; check catalog_path in nvgtls.yaml.",
		})
	}

	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.closeSession()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.closeSession()
	s.logger.Info("Server exit")
	return nil
}

func (s *Server) closeSession() {
	if s.session != nil {
		s.session.Shutdown()
	}
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("Opened", "uri", params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Debug("Closed", "uri", params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// We use full sync, so take the last change
	if len(params.ContentChanges) > 0 {
		lastChange := params.ContentChanges[len(params.ContentChanges)-1]
		s.documents.Update(params.TextDocument.URI, lastChange.Text, params.TextDocument.Version)
	}

	return nil
}

// --- Feature handlers ---

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, &CompletionList{Items: s.getCompletions()}, nil)
	return nil
}

func (s *Server) handleSignatureHelp(msg *JSONRPCMessage) error {
	var params SignatureHelpParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	// A nil result is sent as null, which tells the client to close any open popup.
	s.sendResponse(msg.ID, s.getSignatureHelp(params), nil)
	return nil
}

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, s.getHover(params), nil)
	return nil
}

// --- Helper methods ---

// loadProjectConfig reads nvgtls.yaml from the project root, if any.
func (s *Server) loadProjectConfig() *config.ProjectConfig {
	if s.projectRoot == "" {
		return nil
	}
	cfg, err := config.LoadFromDir(s.projectRoot)
	if err != nil {
		s.logger.Warn("Failed to read project config", "root", s.projectRoot, "error", err)
		return nil
	}
	return cfg
}

// applyLogLevel switches the logger to the workspace's log_level.
func (s *Server) applyLogLevel(project *config.ProjectConfig) {
	level, ok, err := project.Level()
	if err != nil {
		s.logger.Warn("Ignoring project log level", "error", err)
		return
	}
	if !ok {
		return
	}
	if s.level == nil {
		s.logger.Warn("Project log level cannot be applied to this logger", "level", level)
		return
	}
	s.level.Set(level)
	s.logger.Info("Using log level from project config", "level", level)
}

// resolveCatalogPath picks the catalog for this workspace.
// Priority: client initializationOptions > nvgtls.yaml in the project root > server default.
// Relative paths from the client or project config resolve against the project root.
func (s *Server) resolveCatalogPath(opts *InitializationOptions, project *config.ProjectConfig) string {
	if opts != nil && opts.CatalogPath != "" {
		s.logger.Info("Using catalog from client options", "path", opts.CatalogPath)
		return s.relativeToRoot(opts.CatalogPath)
	}

	if project != nil && project.CatalogPath != "" {
		s.logger.Info("Using catalog from project config", "path", project.CatalogPath)
		return s.relativeToRoot(project.CatalogPath)
	}

	return s.catalogPath
}

func (s *Server) relativeToRoot(path string) string {
	if filepath.IsAbs(path) || s.projectRoot == "" {
		return path
	}
	return filepath.Join(s.projectRoot, path)
}
