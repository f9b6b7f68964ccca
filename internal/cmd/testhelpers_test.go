package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

// isolate points the app directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SCRIBE_HOME", home)
	for _, key := range []string{"SCRIBE_ROOT_DIR", "DROPBOX_PATH", "SCRIBE_TRANSCRIBER_GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(key, "")
	}
	return home
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
