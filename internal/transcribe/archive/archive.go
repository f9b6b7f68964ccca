// Package archive preserves original recordings next to their transcripts.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSourceNotFound is returned when the source file does not exist.
var ErrSourceNotFound = errors.New("source file not found")

// Result describes what Preserve did.
type Result struct {
	// Path is the destination of the copy.
	Path string
	// Copied is false when an earlier run had already preserved the file.
	Copied bool
}

// Preserve copies sourcePath into dir under its original name, unless a
// file of that name is already there. The copy goes through a hidden temp
// file and a rename, so a destination that exists is always complete.
// The source's modification time is carried over.
func Preserve(ctx context.Context, sourcePath, dir string) (Result, error) {
	destPath := filepath.Join(dir, filepath.Base(sourcePath))
	res := Result{Path: destPath}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if _, err := os.Stat(destPath); err == nil {
		return res, nil
	} else if !os.IsNotExist(err) {
		return res, fmt.Errorf("stat destination: %w", err)
	}

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return res, ErrSourceNotFound
		}
		return res, fmt.Errorf("stat source: %w", err)
	}

	if err := copyFile(sourcePath, destPath, srcInfo); err != nil {
		return res, err
	}
	res.Copied = true
	return res, nil
}

// copyFile copies src to dst via a temp file in dst's directory.
func copyFile(src, dst string, srcInfo os.FileInfo) error {
	srcFile, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSourceNotFound
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, srcFile); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err := os.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod copy: %w", err)
	}
	if err := os.Chtimes(tmpPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return fmt.Errorf("set copy times: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("commit copy: %w", err)
	}
	committed = true
	return nil
}
