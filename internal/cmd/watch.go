package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/scribe/internal/transcribe"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/pidfile"
)

// ErrAlreadyRunning indicates another watch process owns the PID file
var ErrAlreadyRunning = errors.New("scribe is already running")

// NewWatchCmd creates the watch command
func NewWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [root]",
		Short: "Watch a directory tree and transcribe new recordings",
		Long: `Watch a directory tree for new recordings and transcribe them.

A file is picked up when it is written inside a folder named by
source_marker (default "Audio Record") with the recording extension
(default .m4a). Its transcript and a copy of the original are written to
<meeting>/transcript/, where <meeting> is the folder above the marker.

root overrides root_dir from the config. The watcher runs in the foreground
until interrupted with Ctrl+C or SIGTERM, then waits for in-flight
recordings to finish.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.RootDir = args[0]
			}
			return runWatch(cmd, cfg)
		},
	}
}

func runWatch(cmd *cobra.Command, cfg *transcribe.Config) error {
	if _, err := pidfile.CleanStale(); err != nil {
		return err
	}
	if running, pid, err := pidfile.IsRunning(); err != nil {
		return err
	} else if running {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}

	logger, err := openLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := transcribe.NewService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if err := pidfile.Write(os.Getpid()); err != nil {
		return err
	}
	defer pidfile.Remove()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching: %s\n", cfg.RootDir)
	fmt.Fprintf(out, "Log:      %s\n", logger.LogPath())
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out)

	return svc.Watch(ctx, cfg.RootDir)
}
