// Package transcoder converts recordings into the normalized audio format
// the transcription service expects, by running ffmpeg.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
)

// Defaults produce 16-bit little-endian PCM at 44.1 kHz.
const (
	DefaultBinary     = "ffmpeg"
	DefaultCodec      = "pcm_s16le"
	DefaultSampleRate = 44100
)

// maxStderr bounds how much ffmpeg output is kept on failure.
const maxStderr = 4096

// ErrNotInstalled is returned by CheckAvailable when ffmpeg cannot be found.
var ErrNotInstalled = errors.New("ffmpeg not found on PATH")

// Transcoder converts inputPath into outputPath.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// ExitError reports a failed ffmpeg invocation with the tail of its stderr.
type ExitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, msg)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code, or -1 if it did not exit normally.
func (e *ExitError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// FFmpeg implements Transcoder by shelling out to ffmpeg.
type FFmpeg struct {
	Binary     string
	Codec      string
	SampleRate int
}

// Option configures FFmpeg.
type Option func(*FFmpeg)

// WithBinary sets the ffmpeg executable path.
func WithBinary(path string) Option {
	return func(f *FFmpeg) {
		f.Binary = path
	}
}

// WithCodec sets the output audio codec.
func WithCodec(codec string) Option {
	return func(f *FFmpeg) {
		f.Codec = codec
	}
}

// WithSampleRate sets the output sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(f *FFmpeg) {
		f.SampleRate = hz
	}
}

// NewFFmpeg creates an ffmpeg transcoder with defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		Binary:     DefaultBinary,
		Codec:      DefaultCodec,
		SampleRate: DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CheckAvailable verifies the ffmpeg binary can be resolved.
func (f *FFmpeg) CheckAvailable() error {
	if _, err := exec.LookPath(f.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, f.Binary)
	}
	return nil
}

// Args returns the ffmpeg arguments for one conversion, excluding the binary.
// The output is overwritten if present so a rerun never prompts.
func (f *FFmpeg) Args(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", inputPath,
		"-vn",
		"-acodec", f.Codec,
		"-ar", strconv.Itoa(f.SampleRate),
		"-y",
		outputPath,
	}
}

// Transcode runs ffmpeg and returns an *ExitError on failure, or
// ErrNotInstalled when the binary cannot be found. A partially
// written output is left for the caller to clean up.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string) error {
	args := f.Args(inputPath, outputPath)
	cmd := exec.CommandContext(ctx, f.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, f.Binary)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return &ExitError{
			Args:   args,
			Stderr: tail(stderr.String(), maxStderr),
			Err:    err,
		}
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
