// Package analysis holds the domain types of one analysis transaction: the
// request a client submits and the error kinds a transaction can end with.
package analysis

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSourceBytes bounds the source text of one request (512 KiB).
const DefaultMaxSourceBytes = 512 << 10

// Request asks for the analysis result at one position of a source text.
type Request struct {
	// Source is the full document text submitted for analysis.
	Source string `json:"source"`

	// Line and Character are zero-based.
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Validate checks the request before any peer is started.
// maxSourceBytes <= 0 disables the size check.
func (r Request) Validate(maxSourceBytes int) error {
	if strings.TrimSpace(r.Source) == "" {
		return NewInvalidRequestError("source must not be empty")
	}
	if maxSourceBytes > 0 && len(r.Source) > maxSourceBytes {
		return NewInvalidRequestError("source exceeds the maximum allowed size")
	}
	if !utf8.ValidString(r.Source) {
		return NewInvalidRequestError("source must be valid UTF-8")
	}
	lines := uint32(strings.Count(r.Source, "\n"))
	if r.Line > lines {
		return NewInvalidRequestError("line is past the end of the source")
	}
	return nil
}
