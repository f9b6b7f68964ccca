// Package pidfile provides PID file management for the watch process.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/TechnicallyShaun/scribe/internal/appdir"
)

// Common errors
var (
	ErrNoPIDFile       = errors.New("no PID file found")
	ErrInvalidPID      = errors.New("invalid PID in file")
	ErrProcessNotFound = errors.New("process not found")
)

const (
	// FileName is the PID file name inside the app directory.
	FileName = "scribe.pid"
	dirPerm  = 0755
	filePerm = 0644
)

// Path returns the path to the PID file ($SCRIBE_HOME/scribe.pid)
func Path() (string, error) {
	return appdir.Join(FileName)
}

// Write creates the PID file with the given process ID.
// Creates parent directories if needed.
func Write(pid int) error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	content := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	return nil
}

// Read reads the PID from the PID file.
// Returns ErrNoPIDFile if the file doesn't exist.
// Returns ErrInvalidPID if the file contains invalid data.
func Read() (int, error) {
	path, err := Path()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}

	return pid, nil
}

// Remove deletes the PID file.
// Returns nil if the file doesn't exist.
func Remove() error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}

	return nil
}

// Alive reports whether a process with pid exists.
func Alive(pid int) (bool, error) {
	// Signal 0 performs the permission and existence checks only.
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		// Exists but owned by someone else.
		return true, nil
	default:
		return false, fmt.Errorf("check process: %w", err)
	}
}

// Signal sends sig to pid. ErrProcessNotFound is returned if it has exited.
func Signal(pid int, sig unix.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessNotFound
		}
		return fmt.Errorf("signal %d: %w", pid, err)
	}
	return nil
}

// IsRunning checks if the process with the PID in the file is alive.
// Returns (running, pid, error).
// If there's no PID file, returns (false, 0, nil).
// If the PID file exists but the process is not running (stale), returns (false, pid, nil).
func IsRunning() (bool, int, error) {
	pid, err := Read()
	if err != nil {
		if errors.Is(err, ErrNoPIDFile) {
			return false, 0, nil
		}
		return false, 0, err
	}

	alive, err := Alive(pid)
	return alive, pid, err
}

// CleanStale removes the PID file if it's stale (process not running).
// Returns true if a stale PID file was removed.
func CleanStale() (bool, error) {
	running, pid, err := IsRunning()
	if err != nil {
		return false, err
	}

	if !running && pid != 0 {
		if err := Remove(); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
