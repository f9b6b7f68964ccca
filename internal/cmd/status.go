package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/pidfile"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/status"
)

// NewStatusCmd creates the status command
func NewStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the watcher is running and today's activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			logDir := cfg.Log.Dir
			if logDir == "" {
				logDir = logging.DefaultConfig().LogDir
			}
			return runStatus(cmd, filepath.Join(logDir, logging.DefaultFileName))
		},
	}
}

func runStatus(cmd *cobra.Command, logPath string) error {
	out := cmd.OutOrStdout()

	running, pid, err := pidfile.IsRunning()
	if err != nil {
		return err
	}
	switch {
	case running:
		fmt.Fprintf(out, "Status:    running (PID %d)\n", pid)
	case pid != 0:
		fmt.Fprintf(out, "Status:    not running (stale PID %d)\n", pid)
	default:
		fmt.Fprintln(out, "Status:    not running")
	}

	stats, err := status.ParseTodayStats(logPath)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	fmt.Fprintf(out, "Today:     %d processed, %d skipped, %d errors\n", stats.FilesProcessed, stats.Skipped, stats.Errors)
	if last := stats.LastProcessed; last != nil {
		fmt.Fprintf(out, "Last:      %s %s (%s)\n", status.FormatTimestamp(last.Timestamp), status.BaseName(last.Path), last.Meeting)
		fmt.Fprintf(out, "Output:    %s\n", last.Transcript)
	}
	fmt.Fprintf(out, "Log:       %s\n", logPath)
	return nil
}
