package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running owlbridge server",
	Long: `Stop the owlbridge server recorded in ~/.owlbridge/server.pid.

The server stops accepting requests and lets running analyses finish before
it exits. If it is still alive after --wait, it is killed, and any engine
processes it had spawned are left with closed pipes.

Examples:
  owlbridge stop
  owlbridge stop --wait 2m
  owlbridge stop --force`,
	RunE: runStop,
}

// defaultStopWait covers one full analysis at the default peer timeout plus
// the HTTP shutdown grace period.
const defaultStopWait = 75 * time.Second

var (
	stopWait  time.Duration
	stopForce bool
)

var errNoServer = errors.New("no running server")

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", defaultStopWait, "how long to wait for running analyses before killing the server")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "kill the server immediately")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	return stopServer(pidFilePath(), stopOptions{
		wait:  stopWait,
		force: stopForce,
		poll:  200 * time.Millisecond,
	}, cmd.ErrOrStderr())
}

type stopOptions struct {
	wait  time.Duration
	force bool
	poll  time.Duration
}

// stopServer signals the process in the PID file and waits for it to exit.
// The PID file is removed whenever the process is found to be gone.
func stopServer(pidPath string, opts stopOptions, out io.Writer) error {
	pid := readPIDFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("%w: no PID file at %s", errNoServer, pidPath)
	}

	proc, err := os.FindProcess(pid)
	if err != nil || !processIsAlive(proc) {
		_ = os.Remove(pidPath)
		return fmt.Errorf("%w: process %d has exited (stale PID file removed)", errNoServer, pid)
	}

	if opts.force {
		fmt.Fprintf(out, "Killing owlbridge (PID %d)\n", pid)
		err = proc.Kill()
	} else {
		fmt.Fprintf(out, "Stopping owlbridge (PID %d), waiting up to %s for running analyses\n", pid, opts.wait)
		err = sendGracefulStop(proc)
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	if waitForExit(proc, opts.wait, opts.poll) {
		_ = os.Remove(pidPath)
		fmt.Fprintln(out, "owlbridge stopped")
		return nil
	}

	fmt.Fprintf(out, "owlbridge still running after %s, killing it\n", opts.wait)
	_ = proc.Kill()
	if !waitForExit(proc, 5*time.Second, opts.poll) {
		return fmt.Errorf("process %d did not exit after kill", pid)
	}
	_ = os.Remove(pidPath)
	return nil
}

// waitForExit polls until proc is gone or wait elapses.
func waitForExit(proc *os.Process, wait, poll time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if !processIsAlive(proc) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}
