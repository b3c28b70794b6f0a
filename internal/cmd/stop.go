package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/pidfile"
)

// stopTimeout is the maximum time to wait for graceful shutdown before sending SIGKILL
const stopTimeout = 10 * time.Second

// ErrNotRunning indicates the dispatcher is not running
var ErrNotRunning = errors.New("dispatcher is not running")

// ErrStaleProcess indicates the PID file exists but the process is not running
var ErrStaleProcess = errors.New("stale PID file (process not running)")

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running dispatcher",
		Long: `Stop the transcription dispatcher.

Reads the PID from the PID file and sends SIGTERM for graceful shutdown.
If the process doesn't exit within 10 seconds, SIGKILL is sent to force
termination. The PID file is removed after the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	pidPath, err := pidfile.DefaultPath()
	if err != nil {
		return err
	}

	pid, err := pidfile.Read(pidPath)
	if err != nil {
		if errors.Is(err, pidfile.ErrNoPIDFile) {
			return ErrNotRunning
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	// Probe with signal 0 before sending anything real
	if err := process.Signal(syscall.Signal(0)); err != nil {
		if removeErr := pidfile.Remove(pidPath); removeErr != nil {
			fmt.Fprintf(out, "Warning: failed to remove stale PID file: %v\n", removeErr)
		}
		return ErrStaleProcess
	}

	fmt.Fprintf(out, "Stopping dispatcher (PID %d)...\n", pid)

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	if !waitForExit(pid, stopTimeout) {
		fmt.Fprintln(out, "Process did not exit gracefully, sending SIGKILL...")
		if err := process.Signal(syscall.SIGKILL); err != nil {
			if !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("send SIGKILL: %w", err)
			}
		}
		waitForExit(pid, 2*time.Second)
	}

	if err := pidfile.Remove(pidPath); err != nil {
		fmt.Fprintf(out, "Warning: failed to remove PID file: %v\n", err)
	}

	fmt.Fprintln(out, "Dispatcher stopped")
	return nil
}

// waitForExit polls until the process exits or timeout is reached
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		process, err := os.FindProcess(pid)
		if err != nil {
			return true
		}
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}

	return false
}
