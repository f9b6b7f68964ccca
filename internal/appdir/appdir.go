// Package appdir resolves the per-user state directory shared by the
// config file, logs and PID file.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvHome overrides the state directory location.
const EnvHome = "SCRIBE_HOME"

// DirName is the state directory name under the user's home.
const DirName = ".scribe"

// Dir returns $SCRIBE_HOME if set, otherwise ~/.scribe.
func Dir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Join returns a path inside the state directory.
func Join(elem ...string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}
