// Package client provides transcription client implementations.
package client

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// TranscriptionClient sends audio and receives text.
type TranscriptionClient interface {
	Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error)
}

// TranscriptionResult contains the API response.
type TranscriptionResult struct {
	Text     string
	Language string
	Duration float64
}

// Errors shared by all backends.
var (
	// ErrPayloadTooLarge means the service rejected the upload for its size.
	// Callers can detect it with errors.Is regardless of backend.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmptyTranscript is returned when the service answers with no text.
	ErrEmptyTranscript = errors.New("empty transcript")
)

// payloadTooLargeMessage is the error text the Gemini API uses for oversized requests.
const payloadTooLargeMessage = "request payload size exceeds the limit"

func isPayloadTooLargeMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), payloadTooLargeMessage)
}

// mimeTypes maps intermediate audio extensions to upload content types.
var mimeTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// MIMEType returns the upload content type for an audio file path.
func MIMEType(path string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}
