package status

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/logging"
)

func TestParseLogFile_NonExistent(t *testing.T) {
	stats, err := ParseLogFile(filepath.Join(t.TempDir(), "missing.log"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}

func TestParseLogFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	stats, err := ParseLogFile(path, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.FilesProcessed)
	assert.Nil(t, stats.LastProcessed)
}

// TestParseLogFile_FromLogger writes through the real logger so the parser
// tracks its output format.
func TestParseLogFile_FromLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.Config{Component: "pipeline"})

	logger.Info("recording processed",
		logging.String("path", "/r/Standup/Audio Record/a.m4a"),
		logging.String("meeting", "Standup"),
		logging.String("transcript", "/r/Standup/transcript/a.txt"),
	)
	logger.Info("recording no longer exists, skipped", logging.String("path", "/r/x.m4a"))
	logger.Error("recording failed", errors.New("ffmpeg exited 1"), logging.String("path", "/r/b.m4a"))
	logger.Info("recording processed",
		logging.String("path", "/r/Retro/Audio Record/c.m4a"),
		logging.String("meeting", "Retro"),
		logging.String("transcript", "/r/Retro/transcript/c.txt"),
	)
	buf.WriteString("not json\n")

	path := filepath.Join(t.TempDir(), "scribe.log")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	stats, err := ParseLogFile(path, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Errors)
	require.NotNil(t, stats.LastProcessed)
	assert.Equal(t, "/r/Retro/Audio Record/c.m4a", stats.LastProcessed.Path)
	assert.Equal(t, "Retro", stats.LastProcessed.Meeting)
	assert.Equal(t, "/r/Retro/transcript/c.txt", stats.LastProcessed.Transcript)
}

func TestParseLogFile_OnlyCountsGivenDay(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour).Format(time.RFC3339Nano)
	today := time.Now().Format(time.RFC3339Nano)
	content := `{"time":"` + yesterday + `","level":"info","msg":"recording processed","path":"/old.m4a"}
{"time":"` + yesterday + `","level":"error","msg":"recording failed"}
{"time":"` + today + `","level":"info","msg":"recording processed","path":"/new.m4a"}
`
	path := filepath.Join(t.TempDir(), "scribe.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	stats, err := ParseLogFile(path, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Zero(t, stats.Errors)
	assert.Equal(t, "/new.m4a", stats.LastProcessed.Path)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "file.m4a", BaseName("/path/to/file.m4a"))
	assert.Equal(t, "dir", BaseName("/path/to/dir/"))
	assert.Equal(t, "file.txt", BaseName("file.txt"))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 22, 14, 30, 45, 0, time.Local)
	assert.Equal(t, "2026-01-22T14:30:45", FormatTimestamp(ts))
}
