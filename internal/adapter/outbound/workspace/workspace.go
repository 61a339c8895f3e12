// Package workspace materializes submitted source texts as uniquely named
// files the analysis engine can open.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/owlbridge/owlbridge/internal/port/outbound"
	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// DefaultExtension is the document file extension for Rust sources.
const DefaultExtension = ".rs"

// Workspace creates one document file per transaction inside Dir.
// It implements the outbound.Workspace interface.
type Workspace struct {
	dir    string
	ext    string
	logger *slog.Logger
}

// New creates a Workspace rooted at dir. An empty dir means the current
// working directory; ext gets a leading dot if it lacks one.
func New(dir, ext string, logger *slog.Logger) *Workspace {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{dir: dir, ext: ext, logger: logger}
}

// Dir returns the absolute directory documents are written to.
func (w *Workspace) Dir() (string, error) {
	dir := w.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve workspace dir: %w", err)
	}
	return abs, nil
}

// Create writes source to <dir>/<uuid><ext> with mode 0600 and returns its
// handle. On any error no file is left behind.
func (w *Workspace) Create(source string) (outbound.Document, error) {
	dir, err := w.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+w.ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if _, err := f.WriteString(source); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write document: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close document: %w", err)
	}

	w.logger.Debug("document created", "path", path)
	return &Document{path: path, uri: lsp.FileURI(path)}, nil
}

// Document is a file created by Workspace.Create.
type Document struct {
	path string
	uri  string

	once sync.Once
	err  error
}

// Path returns the absolute file path.
func (d *Document) Path() string { return d.path }

// URI returns the file:// URI of the document.
func (d *Document) URI() string { return d.uri }

// Release removes the file. Calling it again returns the first result; a
// file that is already gone is not an error.
func (d *Document) Release() error {
	d.once.Do(func() {
		if err := os.Remove(d.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.err = fmt.Errorf("remove document: %w", err)
		}
	})
	return d.err
}

// Compile-time check that Workspace implements the Workspace port.
var _ outbound.Workspace = (*Workspace)(nil)
