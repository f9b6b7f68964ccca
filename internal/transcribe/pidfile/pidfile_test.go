package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv("SCRIBE_HOME", dir)
	return dir
}

func writeRaw(t *testing.T, content string) {
	t.Helper()
	path, err := Path()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// deadPID returns a PID that is not in use.
func deadPID(t *testing.T) int {
	t.Helper()
	for pid := 4194000; pid > 4190000; pid-- {
		if alive, err := Alive(pid); err == nil && !alive {
			return pid
		}
	}
	t.Skip("no free PID found")
	return 0
}

func TestPath(t *testing.T) {
	dir := useTempHome(t)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)
}

func TestWriteAndRead(t *testing.T) {
	useTempHome(t)

	require.NoError(t, Write(12345))

	pid, err := Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)

	path, _ := Path()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestRead_Errors(t *testing.T) {
	useTempHome(t)

	_, err := Read()
	assert.ErrorIs(t, err, ErrNoPIDFile)

	for _, content := range []string{"not-a-number", "-5", "0"} {
		writeRaw(t, content)
		_, err := Read()
		assert.ErrorIs(t, err, ErrInvalidPID, content)
	}
}

func TestRemove(t *testing.T) {
	useTempHome(t)

	assert.NoError(t, Remove())

	require.NoError(t, Write(42))
	require.NoError(t, Remove())

	path, _ := Path()
	assert.NoFileExists(t, path)
}

func TestIsRunning(t *testing.T) {
	useTempHome(t)

	running, pid, err := IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
	assert.Zero(t, pid)

	require.NoError(t, Write(os.Getpid()))
	running, pid, err = IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	stale := deadPID(t)
	require.NoError(t, Write(stale))
	running, pid, err = IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, stale, pid)
}

func TestCleanStale(t *testing.T) {
	useTempHome(t)

	require.NoError(t, Write(os.Getpid()))
	removed, err := CleanStale()
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, Write(deadPID(t)))
	removed, err = CleanStale()
	require.NoError(t, err)
	assert.True(t, removed)

	path, _ := Path()
	assert.NoFileExists(t, path)
}

func TestSignal(t *testing.T) {
	assert.NoError(t, Signal(os.Getpid(), unix.Signal(0)))
	assert.ErrorIs(t, Signal(deadPID(t), unix.SIGTERM), ErrProcessNotFound)
}
