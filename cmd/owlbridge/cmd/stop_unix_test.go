//go:build !windows

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startChild runs a sleeping child, reaps it in the background and records
// its PID in a fresh PID file.
func startChild(t *testing.T, script string) (pidPath string, exited <-chan struct{}) {
	t.Helper()
	child := exec.Command("sh", "-c", script)
	if err := child.Start(); err != nil {
		t.Skipf("cannot start sh: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = child.Process.Kill()
		<-done
	})

	pidPath = filepath.Join(t.TempDir(), "server.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", child.Process.Pid)), 0644); err != nil {
		t.Fatal(err)
	}
	// Give sh time to install its trap.
	time.Sleep(100 * time.Millisecond)
	return pidPath, done
}

func TestStopServer_Graceful(t *testing.T) {
	pidPath, exited := startChild(t, "exec sleep 30")

	var out strings.Builder
	err := stopServer(pidPath, stopOptions{wait: 5 * time.Second, poll: 10 * time.Millisecond}, &out)
	if err != nil {
		t.Fatalf("stopServer() error: %v", err)
	}
	<-exited
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("PID file not removed")
	}
	if !strings.Contains(out.String(), "owlbridge stopped") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStopServer_KillsAfterWait(t *testing.T) {
	// The child ignores SIGTERM, like a server stuck draining.
	pidPath, exited := startChild(t, "trap '' TERM; while :; do sleep 1; done")

	var out strings.Builder
	err := stopServer(pidPath, stopOptions{wait: 200 * time.Millisecond, poll: 10 * time.Millisecond}, &out)
	if err != nil {
		t.Fatalf("stopServer() error: %v", err)
	}
	<-exited
	if !strings.Contains(out.String(), "killing it") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStopServer_Force(t *testing.T) {
	pidPath, exited := startChild(t, "trap '' TERM; while :; do sleep 1; done")

	err := stopServer(pidPath, stopOptions{wait: 5 * time.Second, force: true, poll: 10 * time.Millisecond}, io.Discard)
	if err != nil {
		t.Fatalf("stopServer() error: %v", err)
	}
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Error("forced stop did not kill the process")
	}
}

func TestStopServer_NoServer(t *testing.T) {
	dir := t.TempDir()

	err := stopServer(filepath.Join(dir, "missing.pid"), stopOptions{}, io.Discard)
	if !errors.Is(err, errNoServer) {
		t.Errorf("missing PID file: err = %v, want errNoServer", err)
	}

	// A reaped child leaves a PID nobody owns.
	child := exec.Command("true")
	if err := child.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}
	stale := filepath.Join(dir, "stale.pid")
	_ = os.WriteFile(stale, []byte(fmt.Sprintf("%d\n", child.Process.Pid)), 0644)

	err = stopServer(stale, stopOptions{}, io.Discard)
	if !errors.Is(err, errNoServer) {
		t.Errorf("stale PID: err = %v, want errNoServer", err)
	}
	if _, statErr := os.Stat(stale); !os.IsNotExist(statErr) {
		t.Error("stale PID file not removed")
	}
}

func TestProcessIsAlive_Self(t *testing.T) {
	self, _ := os.FindProcess(os.Getpid())
	if !processIsAlive(self) {
		t.Error("processIsAlive(self) = false")
	}
}
