package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/scribe/internal/transcribe"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/logging"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	envFile    string
}

// NewRootCmd creates the root command for the scribe CLI
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "scribe",
		Short: "Watch for meeting recordings and transcribe them",
		Long: `scribe watches a directory tree for new meeting recordings, converts each
one with ffmpeg, sends it to a speech-to-text service and writes the
transcript next to a copy of the original.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $SCRIBE_HOME/config.json)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading config (default ./.env if present)")

	rootCmd.AddCommand(NewWatchCmd(opts))
	rootCmd.AddCommand(NewProcessCmd(opts))
	rootCmd.AddCommand(NewStopCmd())
	rootCmd.AddCommand(NewStatusCmd(opts))
	rootCmd.AddCommand(NewConfigCmd(opts, nil))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. An empty path loads ./.env if it exists.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// loadConfig reads the configuration named by --config.
func (o *globalOptions) loadConfig() (*transcribe.Config, error) {
	cfg, err := transcribe.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openLogger creates the rotating file logger described by cfg.Log,
// mirroring to the command's stderr when console output is enabled.
func openLogger(cmd *cobra.Command, cfg *transcribe.Config) (*logging.FileLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig().WithMinLevel(level)
	if cfg.Log.Dir != "" {
		lc.LogDir = cfg.Log.Dir
	}
	lc.MaxSizeMB = cfg.Log.MaxSizeMB
	lc.MaxBackups = cfg.Log.MaxBackups
	lc.MaxAgeDays = cfg.Log.MaxAgeDays
	if cfg.Log.Console {
		lc.Console = cmd.ErrOrStderr()
	}

	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
