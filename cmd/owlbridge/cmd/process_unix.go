//go:build !windows

package cmd

import (
	"errors"
	"os"
	"syscall"
)

// gracefulSignals end serve after in-flight analyses drain, and cancel a
// running analyze.
func gracefulSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// processIsAlive probes proc with signal 0. EPERM means the PID exists but
// belongs to another user, which still counts as running.
func processIsAlive(proc *os.Process) bool {
	err := proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// sendGracefulStop delivers SIGTERM, which serve handles like Ctrl+C.
func sendGracefulStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
