package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/scribe/internal/transcribe"
)

// NewConfigCmd creates the config command. A nil prompter reads stdin.
func NewConfigCmd(opts *globalOptions, prompter Prompter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure scribe",
		Long: `Interactive configuration for scribe.

Prompts for the recordings root folder and the transcription backend, then
writes the config file. Other settings keep their defaults and can be edited
in the file or overridden with SCRIBE_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := prompter
			if p == nil {
				p = NewStdinPrompter(cmd.OutOrStdout())
			}
			return runConfig(cmd, opts, p)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after applying defaults, the config file and the environment. Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg.Masked(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	return cmd
}

func runConfig(cmd *cobra.Command, opts *globalOptions, prompter Prompter) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "scribe Configuration")
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out, "")

	rootDir, err := promptRequired(prompter, "Recordings root folder [required]: ")
	if err != nil {
		return err
	}

	backend, err := prompter.Prompt(fmt.Sprintf("Transcription backend (%s/%s) [default: %s]: ",
		transcribe.BackendGemini, transcribe.BackendWhisper, transcribe.BackendGemini))
	if err != nil {
		return err
	}
	backend = strings.ToLower(backend)
	if backend == "" {
		backend = transcribe.BackendGemini
	}

	cfg := transcribe.Default()
	cfg.RootDir = rootDir
	cfg.Transcriber.Backend = backend

	switch backend {
	case transcribe.BackendGemini:
		key, err := promptRequired(prompter, "Gemini API key [required]: ")
		if err != nil {
			return err
		}
		cfg.Transcriber.Gemini.APIKey = key
	case transcribe.BackendWhisper:
		apiURL, err := promptRequired(prompter, "Whisper API URL [required]: ")
		if err != nil {
			return err
		}
		cfg.Transcriber.Whisper.APIURL = apiURL
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := opts.configPath
	if path == "" {
		if path, err = transcribe.DefaultConfigPath(); err != nil {
			return err
		}
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	return nil
}

// promptRequired prompts for a required field, returning an error if empty
func promptRequired(prompter Prompter, prompt string) (string, error) {
	value, err := prompter.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}
