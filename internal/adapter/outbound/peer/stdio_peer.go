// Package peer launches the external analysis engine as a subprocess and
// exposes its stdio pipes.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/owlbridge/owlbridge/internal/port/outbound"
)

// waitDelay bounds how long Close waits for stdio copying after a kill.
const waitDelay = 2 * time.Second

// StdioPeer runs one engine process per transaction.
// It implements the outbound.Peer interface.
type StdioPeer struct {
	command string
	args    []string
	dir     string
	stderr  io.Writer

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	waitOnce sync.Once
	waitErr  error
}

// Option configures a StdioPeer.
type Option func(*StdioPeer)

// WithDir sets the engine's working directory.
func WithDir(dir string) Option {
	return func(p *StdioPeer) { p.dir = dir }
}

// WithStderr forwards the engine's stderr to w instead of os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(p *StdioPeer) { p.stderr = w }
}

// NewStdioPeer creates an unstarted peer for the given engine command.
func NewStdioPeer(command string, args []string, opts ...Option) *StdioPeer {
	p := &StdioPeer{
		command: command,
		args:    append([]string(nil), args...),
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFactory returns a PeerFactory producing StdioPeers for command.
func NewFactory(command string, args []string, opts ...Option) outbound.PeerFactory {
	return func() outbound.Peer {
		return NewStdioPeer(command, args, opts...)
	}
}

// Command returns the executable the peer runs.
func (p *StdioPeer) Command() string {
	return p.command
}

// Start launches the engine. The process is killed when ctx is done.
func (p *StdioPeer) Start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil, nil, errors.New("peer already started")
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.dir
	cmd.Stderr = p.stderr
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("start %s: %w", p.command, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	return stdin, stdout, nil
}

// Wait blocks until the engine exits and returns its exit status.
func (p *StdioPeer) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil {
		return errors.New("peer not started")
	}
	return p.reap(cmd)
}

// reap waits for the process exactly once and caches the result.
func (p *StdioPeer) reap(cmd *exec.Cmd) error {
	p.waitOnce.Do(func() {
		p.waitErr = cmd.Wait()
	})
	return p.waitErr
}

// Close closes stdin, kills the engine if it is still running, reaps it and
// closes stdout. Errors from already-closed pipes and already-exited
// processes are ignored.
func (p *StdioPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	if p.stdin != nil {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
		p.stdin = nil
	}

	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill process: %w", err))
		}
		if err := p.reap(p.cmd); err != nil && !expectedExit(err) {
			errs = append(errs, fmt.Errorf("wait process: %w", err))
		}
	}

	if p.stdout != nil {
		if err := p.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
		p.stdout = nil
	}

	return errors.Join(errs...)
}

// expectedExit reports whether a Wait error is the normal outcome of killing
// the engine: a non-zero exit status, a context-triggered kill or a stdio
// copy cut short by WaitDelay.
func expectedExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) ||
		errors.Is(err, exec.ErrWaitDelay) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Compile-time check that StdioPeer implements the Peer interface.
var _ outbound.Peer = (*StdioPeer)(nil)
