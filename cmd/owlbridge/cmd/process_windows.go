//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// exitCodeStillActive is what GetExitCodeProcess reports for a live process.
const exitCodeStillActive = 259

// gracefulSignals lists the only console signal Go delivers on Windows.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// processIsAlive opens a query handle on proc and inspects its exit code.
// A PID that cannot be opened is treated as gone.
func processIsAlive(proc *os.Process) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == exitCodeStillActive
}

// sendGracefulStop kills the server. Another process cannot raise
// os.Interrupt in it, so there is no drain on Windows and engine children
// run until they notice their closed pipes.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
