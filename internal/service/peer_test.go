package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// responder reacts to one message the bridge sent. Returning an error makes
// the fake peer exit, closing its stdout.
type responder func(msg *lsp.Inbound, out io.Writer) error

// scriptedPeer implements outbound.Peer over in-memory pipes. A goroutine
// plays the engine: it decodes every frame the bridge writes and hands it to
// respond. Cancelling the Start context closes the pipes, like killing a
// process started with exec.CommandContext.
type scriptedPeer struct {
	respond  responder
	startErr error

	mu       sync.Mutex
	started  bool
	closed   bool
	received []*lsp.Inbound

	inR  *io.PipeReader
	inW  *io.PipeWriter
	outR *io.PipeReader
	outW *io.PipeWriter

	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newScriptedPeer(respond responder) *scriptedPeer {
	return &scriptedPeer{respond: respond, stop: make(chan struct{})}
}

func (p *scriptedPeer) Start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, nil, p.startErr
	}
	p.started = true
	p.inR, p.inW = io.Pipe()
	p.outR, p.outW = io.Pipe()

	p.wg.Add(2)
	go p.serve()
	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
			p.kill()
		case <-p.stop:
		}
	}()
	return p.inW, p.outR, nil
}

func (p *scriptedPeer) serve() {
	defer p.wg.Done()
	defer func() { _ = p.outW.Close() }()

	dec := lsp.NewDecoder(p.inR, 0)
	for {
		body, err := dec.Next()
		if err != nil {
			return
		}
		msg, err := lsp.DecodeInbound(body)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.received = append(p.received, msg)
		p.mu.Unlock()

		if p.respond != nil {
			if err := p.respond(msg, p.outW); err != nil {
				return
			}
		}
	}
}

func (p *scriptedPeer) kill() {
	p.closeOnce.Do(func() {
		_ = p.inR.Close()
		_ = p.inW.Close()
		_ = p.outR.Close()
		_ = p.outW.Close()
	})
}

func (p *scriptedPeer) Wait() error {
	p.wg.Wait()
	return nil
}

func (p *scriptedPeer) Close() error {
	p.mu.Lock()
	p.closed = true
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	p.stopOnce.Do(func() { close(p.stop) })
	p.kill()
	p.wg.Wait()
	return nil
}

func (p *scriptedPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *scriptedPeer) messages() []*lsp.Inbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*lsp.Inbound(nil), p.received...)
}

// reply writes a framed result response.
func reply(out io.Writer, id int64, result string) error {
	return lsp.WriteFrame(out, []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, result)))
}

// replyError writes a framed error response.
func replyError(out io.Writer, id int64, code int, message string) error {
	return lsp.WriteFrame(out, []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":%d,"message":%q}}`, id, code, message)))
}

// notify writes a framed notification.
func notify(out io.Writer, method string) error {
	return lsp.WriteFrame(out, []byte(fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":{}}`, method)))
}

const decorations = `{"decorations":[]}`

// ackEngine answers the handshake and the analysis trigger, interleaves a
// notification, then answers the position query.
func ackEngine(msg *lsp.Inbound, out io.Writer) error {
	id, ok := msg.NumericID()
	if !ok || msg.Kind != lsp.KindRequest {
		return nil
	}
	switch id {
	case HandshakeID:
		return reply(out, id, `{"capabilities":{}}`)
	case AnalyzeID:
		if err := notify(out, "rustowl/progress"); err != nil {
			return err
		}
		return reply(out, id, `null`)
	case CursorID:
		return reply(out, id, decorations)
	}
	return nil
}

// cursorOnlyEngine answers nothing but the position query.
func cursorOnlyEngine(msg *lsp.Inbound, out io.Writer) error {
	if id, ok := msg.NumericID(); ok && id == CursorID && msg.Kind == lsp.KindRequest {
		return reply(out, id, decorations)
	}
	return nil
}

// silentEngine reads everything and answers nothing.
func silentEngine(*lsp.Inbound, io.Writer) error { return nil }
