package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg. It copies the
// -i input to the final argument, or fails when the input contains "bad".
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	script := `#!/bin/sh
in=""
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  prev="$arg"
  out="$arg"
done
if grep -q bad "$in"; then
  echo "Invalid data found when processing input" >&2
  printf 'partial' > "$out"
  exit 1
fi
cp "$in" "$out"
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestNewFFmpeg_Defaults(t *testing.T) {
	f := NewFFmpeg()
	assert.Equal(t, DefaultBinary, f.Binary)
	assert.Equal(t, DefaultCodec, f.Codec)
	assert.Equal(t, DefaultSampleRate, f.SampleRate)

	f = NewFFmpeg(WithBinary("/opt/ffmpeg"), WithCodec("pcm_s24le"), WithSampleRate(16000))
	assert.Equal(t, "/opt/ffmpeg", f.Binary)
	assert.Equal(t, "pcm_s24le", f.Codec)
	assert.Equal(t, 16000, f.SampleRate)
}

func TestFFmpeg_Args(t *testing.T) {
	args := NewFFmpeg().Args("/in/clip.m4a", "/out/clip.wav")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /in/clip.m4a")
	assert.Contains(t, joined, "-acodec pcm_s16le")
	assert.Contains(t, joined, "-ar 44100")
	assert.Contains(t, args, "-y")
	assert.Equal(t, "/out/clip.wav", args[len(args)-1])
}

func TestFFmpeg_TranscodeSuccess(t *testing.T) {
	f := NewFFmpeg(WithBinary(fakeFFmpeg(t)))
	dir := t.TempDir()
	in := filepath.Join(dir, "clip.m4a")
	out := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(in, []byte("audio"), 0644))

	require.NoError(t, f.Transcode(context.Background(), in, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestFFmpeg_TranscodeFailure(t *testing.T) {
	f := NewFFmpeg(WithBinary(fakeFFmpeg(t)))
	dir := t.TempDir()
	in := filepath.Join(dir, "clip.m4a")
	out := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(in, []byte("bad"), 0644))

	err := f.Transcode(context.Background(), in, out)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, exitErr.Stderr, "Invalid data")
	assert.Contains(t, err.Error(), "Invalid data")
}

func TestFFmpeg_MissingBinary(t *testing.T) {
	f := NewFFmpeg(WithBinary(filepath.Join(t.TempDir(), "nope")))

	assert.ErrorIs(t, f.CheckAvailable(), ErrNotInstalled)

	err := f.Transcode(context.Background(), "/in.m4a", "/out.wav")
	assert.ErrorIs(t, err, ErrNotInstalled)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "cde", tail("abcde", 3))
}
