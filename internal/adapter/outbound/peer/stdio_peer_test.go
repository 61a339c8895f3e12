package peer

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/owlbridge/owlbridge/pkg/lsp"
)

func requireCommand(t *testing.T, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix utilities required")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestStdioPeer_EchoFrame(t *testing.T) {
	cat := requireCommand(t, "cat")

	p := NewStdioPeer(cat, nil)
	stdin, stdout, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() { _ = p.Close() }()

	body := []byte(`{"jsonrpc":"2.0","id":40,"result":{"decorations":[]}}`)
	if err := lsp.WriteFrame(stdin, body); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}

	got, err := lsp.NewDecoder(stdout, 0).Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("echoed body = %s, want %s", got, body)
	}
}

func TestStdioPeer_StartTwice(t *testing.T) {
	cat := requireCommand(t, "cat")

	p := NewStdioPeer(cat, nil)
	if _, _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() { _ = p.Close() }()

	if _, _, err := p.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestStdioPeer_StartMissingCommand(t *testing.T) {
	p := NewStdioPeer("owlbridge-no-such-engine", nil)
	if _, _, err := p.Start(context.Background()); err == nil {
		t.Fatal("Start() with missing executable should fail")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() after failed Start = %v, want nil", err)
	}
}

func TestStdioPeer_CloseKillsAndIsIdempotent(t *testing.T) {
	sleep := requireCommand(t, "sleep")

	p := NewStdioPeer(sleep, []string{"30"})
	if _, _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return after killing the process")
	}

	if err := p.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestStdioPeer_ContextCancelUnblocksRead(t *testing.T) {
	sleep := requireCommand(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	p := NewStdioPeer(sleep, []string{"30"})
	_, stdout, err := p.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() { _ = p.Close() }()

	readErr := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(stdout)
		readErr <- err
	}()

	cancel()
	select {
	case <-readErr:
	case <-time.After(5 * time.Second):
		t.Fatal("read did not unblock after context cancellation")
	}
}

func TestStdioPeer_WaitBeforeStart(t *testing.T) {
	p := NewStdioPeer("cat", nil)
	if err := p.Wait(); err == nil {
		t.Error("Wait() before Start should fail")
	}
}

func TestStdioPeer_StderrForwarded(t *testing.T) {
	sh := requireCommand(t, "sh")

	var stderr bytes.Buffer
	p := NewStdioPeer(sh, []string{"-c", "echo engine-log >&2"}, WithStderr(&stderr))
	if _, _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("engine-log")) {
		t.Errorf("stderr = %q, want engine-log", stderr.String())
	}
}

func TestNewFactory(t *testing.T) {
	f := NewFactory("rustowl", []string{"--stdio"})
	a, b := f(), f()
	if a == b {
		t.Error("factory must return a fresh peer per call")
	}
	sp, ok := a.(*StdioPeer)
	if !ok {
		t.Fatalf("factory returned %T, want *StdioPeer", a)
	}
	if sp.Command() != "rustowl" {
		t.Errorf("Command() = %q, want rustowl", sp.Command())
	}
}
