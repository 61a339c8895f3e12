// Package lsp implements the Content-Length framed JSON-RPC 2.0 transport
// spoken by language-server style analysis engines over a pair of pipes.
//
// A frame is a block of MIME-style header lines, a blank line, then exactly
// Content-Length bytes of JSON:
//
//	Content-Length: 52\r\n
//	\r\n
//	{"jsonrpc":"2.0","id":40,"result":{"decorations":[]}}
//
// The decoder tolerates arbitrarily fragmented reads and keeps any bytes read
// past the end of one frame as a carry for the next call, so pipelined frames
// are never re-read from the transport.
package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	// ContentLengthHeader is the only header the framing requires.
	ContentLengthHeader = "Content-Length"

	// DefaultMaxFrameBytes bounds a single frame body (64 MiB).
	DefaultMaxFrameBytes = 64 << 20

	// MaxHeaderBytes bounds the header block. A peer that never sends the
	// blank line is cut off here instead of growing the carry.
	MaxHeaderBytes = 8 << 10

	readChunkSize = 4096
)

var headerDelimiter = []byte("\r\n\r\n")

// Encode wraps body in a Content-Length frame. Nothing follows the body.
func Encode(body []byte) []byte {
	header := fmt.Sprintf("%s: %d\r\n\r\n", ContentLengthHeader, len(body))
	frame := make([]byte, 0, len(header)+len(body))
	frame = append(frame, header...)
	return append(frame, body...)
}

// WriteFrame writes one framed body to w in a single Write call.
func WriteFrame(w io.Writer, body []byte) error {
	if _, err := w.Write(Encode(body)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame extracts the next frame from carry followed by r.
//
// carry holds bytes already read from r but not yet consumed. ReadFrame reads
// from r only while carry does not contain a complete frame. On success it
// returns the frame body and the unconsumed remainder, which the caller passes
// back as carry on the next call. maxBody <= 0 disables the size limit.
//
// All failures are *FrameError.
func ReadFrame(carry []byte, r io.Reader, maxBody int) (body, rest []byte, err error) {
	buf := carry

	headerEnd := bytes.Index(buf, headerDelimiter)
	for headerEnd < 0 {
		if len(buf) > MaxHeaderBytes {
			return nil, buf, frameError(ErrMalformedHeader, fmt.Errorf("no header terminator within %d bytes", MaxHeaderBytes))
		}
		if buf, err = fill(buf, r); err != nil {
			return nil, buf, frameError(ErrTruncated, err)
		}
		headerEnd = bytes.Index(buf, headerDelimiter)
	}

	bodyStart := headerEnd + len(headerDelimiter)
	length, err := parseContentLength(buf[:bodyStart])
	if err != nil {
		return nil, buf, err
	}
	if length > math.MaxInt-bodyStart {
		return nil, buf, frameError(ErrInvalidLength, fmt.Errorf("length %d overflows", length))
	}
	if maxBody > 0 && length > maxBody {
		return nil, buf, frameError(ErrFrameTooLarge, fmt.Errorf("declared %d bytes, limit %d", length, maxBody))
	}

	bodyEnd := bodyStart + length
	for len(buf) < bodyEnd {
		if buf, err = fill(buf, r); err != nil {
			return nil, buf, frameError(ErrTruncated, err)
		}
	}

	body = buf[bodyStart:bodyEnd]
	rest = append([]byte(nil), buf[bodyEnd:]...)
	if !json.Valid(body) {
		return nil, rest, frameError(ErrInvalidBody, nil)
	}
	return body, rest, nil
}

// fill appends one read's worth of bytes to buf. A read that returns data is
// never an error here; the error resurfaces on the next read.
func fill(buf []byte, r io.Reader) ([]byte, error) {
	var chunk [readChunkSize]byte
	n, err := r.Read(chunk[:])
	buf = append(buf, chunk[:n]...)
	if n > 0 {
		return buf, nil
	}
	if err == nil {
		return buf, nil
	}
	return buf, err
}

// parseContentLength parses a header block including its terminating blank
// line and returns the declared body length.
func parseContentLength(block []byte) (int, error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))
	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return 0, frameError(ErrMalformedHeader, err)
	}

	raw := header.Get(ContentLengthHeader)
	if raw == "" {
		return 0, frameError(ErrMissingLength, nil)
	}
	length, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, frameError(ErrInvalidLength, err)
	}
	if length < 0 {
		return 0, frameError(ErrInvalidLength, fmt.Errorf("negative length %d", length))
	}
	return length, nil
}

// Decoder reads successive frames from a stream, keeping the carry between
// calls. It is not safe for concurrent use.
type Decoder struct {
	r       io.Reader
	carry   []byte
	maxBody int
	frames  int
}

// NewDecoder returns a Decoder reading from r with the given body size limit.
// maxBody <= 0 disables the limit.
func NewDecoder(r io.Reader, maxBody int) *Decoder {
	return &Decoder{r: r, maxBody: maxBody}
}

// Next returns the body of the next frame.
func (d *Decoder) Next() ([]byte, error) {
	body, rest, err := ReadFrame(d.carry, d.r, d.maxBody)
	d.carry = rest
	if err != nil {
		return nil, err
	}
	d.frames++
	return body, nil
}

// Buffered returns the bytes read from the stream but not yet decoded.
func (d *Decoder) Buffered() []byte {
	return d.carry
}

// Frames returns the number of frames decoded so far.
func (d *Decoder) Frames() int {
	return d.frames
}
