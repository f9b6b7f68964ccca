// Package writer persists transcripts next to the preserved recording.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultExtension is the transcript file extension.
const DefaultExtension = ".txt"

// OutputWriter saves a transcript and returns the path written.
type OutputWriter interface {
	Write(ctx context.Context, dir, baseName, text string) (string, error)
}

// TextWriter implements OutputWriter with plain text files.
type TextWriter struct {
	// Extension is appended to the base name (default: .txt).
	Extension string
}

// NewTextWriter creates a plain text writer.
func NewTextWriter() *TextWriter {
	return &TextWriter{Extension: DefaultExtension}
}

// Path returns the transcript path for baseName inside dir.
func (w *TextWriter) Path(dir, baseName string) string {
	ext := w.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	return filepath.Join(dir, baseName+ext)
}

// Write replaces dir/baseName.txt with text. A rerun for the same recording
// overwrites the previous transcript; the replacement is atomic.
func (w *TextWriter) Write(ctx context.Context, dir, baseName, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outputPath := w.Path(dir, baseName)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*.partial")
	if err != nil {
		return "", fmt.Errorf("create transcript temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("chmod transcript: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("commit transcript: %w", err)
	}

	return outputPath, nil
}
