package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/pidfile"
)

// stopTimeout is the maximum time to wait for graceful shutdown before sending SIGKILL
var stopTimeout = 10 * time.Second

// ErrNotRunning indicates the watcher is not running
var ErrNotRunning = errors.New("scribe is not running")

// ErrStaleProcess indicates the PID file exists but the process is not running
var ErrStaleProcess = errors.New("stale PID file (process not running)")

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watcher",
		Long: `Stop the running watcher.

Reads the PID from $SCRIBE_HOME/scribe.pid and sends SIGTERM, which lets
in-flight recordings finish. If the process doesn't exit within 10 seconds,
SIGKILL is sent. The PID file is removed after the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	pid, err := pidfile.Read()
	if err != nil {
		if errors.Is(err, pidfile.ErrNoPIDFile) {
			return ErrNotRunning
		}
		return err
	}

	alive, err := pidfile.Alive(pid)
	if err != nil {
		return err
	}
	if !alive {
		if err := pidfile.Remove(); err != nil {
			fmt.Fprintf(out, "Warning: failed to remove stale PID file: %v\n", err)
		}
		return ErrStaleProcess
	}

	fmt.Fprintf(out, "Stopping scribe (PID %d)...\n", pid)

	if err := pidfile.Signal(pid, unix.SIGTERM); err != nil && !errors.Is(err, pidfile.ErrProcessNotFound) {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	if !waitForExit(pid, stopTimeout) {
		fmt.Fprintln(out, "Process did not exit gracefully, sending SIGKILL...")
		if err := pidfile.Signal(pid, unix.SIGKILL); err != nil && !errors.Is(err, pidfile.ErrProcessNotFound) {
			return fmt.Errorf("send SIGKILL: %w", err)
		}
		waitForExit(pid, 2*time.Second)
	}

	if err := pidfile.Remove(); err != nil {
		fmt.Fprintf(out, "Warning: failed to remove PID file: %v\n", err)
	}

	fmt.Fprintln(out, "scribe stopped")
	return nil
}

// waitForExit polls until the process exits or timeout is reached
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	pollInterval := 100 * time.Millisecond

	for time.Now().Before(deadline) {
		if alive, err := pidfile.Alive(pid); err != nil || !alive {
			return true
		}
		time.Sleep(pollInterval)
	}

	return false
}
