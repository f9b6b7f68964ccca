package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/scribe/internal/transcribe"
)

// NewProcessCmd creates the process command
func NewProcessCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Transcribe a single recording now",
		Long: `Run the pipeline once for a recording, without the watch filter.

Use this to retry a recording whose earlier run failed. The transcript is
written to the transcript folder two levels above the file, overwriting any
previous transcript.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.RootDir == "" {
				cfg.RootDir = filepath.Dir(args[0])
			}
			return runProcess(cmd, cfg, args[0])
		},
	}
}

func runProcess(cmd *cobra.Command, cfg *transcribe.Config, path string) error {
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

	out, err := svc.ProcessFile(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transcript: %s\n", out.TranscriptPath)
	return nil
}
