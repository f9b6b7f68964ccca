package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewTextWriter()

	path, err := w.Write(context.Background(), dir, "clip", "hello world")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestTextWriter_OverwritesPreviousTranscript(t *testing.T) {
	dir := t.TempDir()
	w := NewTextWriter()

	_, err := w.Write(context.Background(), dir, "clip", "a much longer first transcript")
	require.NoError(t, err)
	path, err := w.Write(context.Background(), dir, "clip", "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestTextWriter_CustomExtension(t *testing.T) {
	w := &TextWriter{Extension: ".md"}
	assert.Equal(t, filepath.Join("/t", "clip.md"), w.Path("/t", "clip"))

	var zero TextWriter
	assert.Equal(t, filepath.Join("/t", "clip.txt"), zero.Path("/t", "clip"))
}

func TestTextWriter_MissingDirectory(t *testing.T) {
	w := NewTextWriter()
	_, err := w.Write(context.Background(), filepath.Join(t.TempDir(), "missing"), "clip", "x")
	assert.Error(t, err)
}

func TestTextWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTextWriter().Write(ctx, t.TempDir(), "clip", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
