// Package outbound defines the outbound port interfaces the analysis core
// depends on: the peer process, the document workspace and the result cache.
package outbound

import (
	"context"
	"encoding/json"
	"io"
)

// Peer is one invocation of the external analysis engine.
// Adapters implement this to launch the engine and expose its pipes.
type Peer interface {
	// Start launches the engine.
	// Returns the engine's stdin (for sending) and stdout (for receiving).
	Start(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, err error)

	// Wait blocks until the engine terminates.
	Wait() error

	// Close terminates the engine and releases its pipes. Safe to call more
	// than once.
	Close() error
}

// PeerFactory returns a fresh, unstarted Peer for each transaction.
type PeerFactory func() Peer

// Document is a source text materialized where the engine can read it.
type Document interface {
	// Path is the absolute filesystem path of the document.
	Path() string

	// URI is the file:// URI announced to the engine.
	URI() string

	// Release removes the document. Idempotent.
	Release() error
}

// Workspace creates per-transaction documents.
type Workspace interface {
	Create(source string) (Document, error)
}

// ResultCache stores successful analysis results by digest.
type ResultCache interface {
	Get(key uint64) (json.RawMessage, bool)
	Put(key uint64, result json.RawMessage)
}
