package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Protocol method names and defaults for the analysis engine.
const (
	MethodInitialize = "initialize"
	MethodDidOpen    = "textDocument/didOpen"

	DefaultLanguageID    = "rust"
	DefaultAnalyzeMethod = "rustowl/analyze"
	DefaultCursorMethod  = "rustowl/cursor"

	// documentVersion is the version announced for a freshly opened document.
	documentVersion = 1
)

// Position is a zero-based line/character offset in a document.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem is a document transferred with didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

// InitializeParams are the handshake parameters. The nil pointer and slice
// fields serialize as JSON null.
type InitializeParams struct {
	ProcessID        *int               `json:"processId"`
	RootURI          *string            `json:"rootUri"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders"`
}

// ClientCapabilities advertises what the bridge supports.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type TextDocumentClientCapabilities struct {
	Synchronization *SynchronizationCapabilities `json:"synchronization,omitempty"`
}

type SynchronizationCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// CursorParams query the analysis at one position of an opened document.
type CursorParams struct {
	Position Position               `json:"position"`
	Document TextDocumentIdentifier `json:"document"`
}

// Builder constructs the messages of one analysis session. Each message is
// built independently; the zero Builder is not useful, use DefaultBuilder.
type Builder struct {
	LanguageID    string
	AnalyzeMethod string
	CursorMethod  string
}

// DefaultBuilder returns a Builder for the rustowl engine.
func DefaultBuilder() Builder {
	return Builder{
		LanguageID:    DefaultLanguageID,
		AnalyzeMethod: DefaultAnalyzeMethod,
		CursorMethod:  DefaultCursorMethod,
	}
}

// Initialize builds the handshake request.
func (b Builder) Initialize(id int64) (*jsonrpc.Request, error) {
	params := InitializeParams{
		Capabilities: ClientCapabilities{
			TextDocument: &TextDocumentClientCapabilities{
				Synchronization: &SynchronizationCapabilities{DynamicRegistration: true},
			},
		},
	}
	return newCall(id, MethodInitialize, params)
}

// DidOpen builds the notification registering the document text under uri.
func (b Builder) DidOpen(uri, text string) (*jsonrpc.Request, error) {
	params := DidOpenParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: b.LanguageID,
			Version:    documentVersion,
			Text:       text,
		},
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", MethodDidOpen, err)
	}
	return &jsonrpc.Request{Method: MethodDidOpen, Params: raw}, nil
}

// Analyze builds the request that triggers analysis of all opened documents.
func (b Builder) Analyze(id int64) (*jsonrpc.Request, error) {
	return newCall(id, b.AnalyzeMethod, struct{}{})
}

// Cursor builds the position query whose result is the session's output.
func (b Builder) Cursor(id int64, uri string, line, character uint32) (*jsonrpc.Request, error) {
	params := CursorParams{
		Position: Position{Line: line, Character: character},
		Document: TextDocumentIdentifier{URI: uri},
	}
	return newCall(id, b.CursorMethod, params)
}

func newCall(id int64, method string, params any) (*jsonrpc.Request, error) {
	rawID, err := jsonrpc.MakeID(float64(id))
	if err != nil {
		return nil, fmt.Errorf("make id %d: %w", id, err)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &jsonrpc.Request{ID: rawID, Method: method, Params: raw}, nil
}

// FileURI converts an absolute filesystem path to a file:// URI.
func FileURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths: C:/x -> /C:/x
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
