package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake wav"), 0o644))
	return path
}

func TestWhisperASRClient_BuildURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		opts     []WhisperASROption
		expected string
	}{
		{
			name:     "bare host gets asr path",
			baseURL:  "http://localhost:9000",
			expected: "http://localhost:9000/asr?output=json",
		},
		{
			name:     "explicit language",
			baseURL:  "http://localhost:9000/",
			opts:     []WhisperASROption{WithLanguage("en")},
			expected: "http://localhost:9000/asr?language=en&output=json",
		},
		{
			name:     "auto language omitted",
			baseURL:  "http://localhost:9000",
			opts:     []WhisperASROption{WithLanguage("auto"), WithOutputFormat(OutputFormatText)},
			expected: "http://localhost:9000/asr?output=text",
		},
		{
			name:     "custom path kept",
			baseURL:  "http://whisper.local/v1/asr",
			expected: "http://whisper.local/v1/asr?output=json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWhisperASRClient(tt.baseURL, tt.opts...)
			got, err := c.buildURL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWhisperASRClient_ParseResponse(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		c := NewWhisperASRClient("http://x")
		res, err := c.parseResponse([]byte(`{"text":"hello world","language":"en"}`))
		require.NoError(t, err)
		assert.Equal(t, "hello world", res.Text)
		assert.Equal(t, "en", res.Language)
	})

	t.Run("text", func(t *testing.T) {
		c := NewWhisperASRClient("http://x", WithOutputFormat(OutputFormatText))
		res, err := c.parseResponse([]byte("plain transcript"))
		require.NoError(t, err)
		assert.Equal(t, "plain transcript", res.Text)
	})

	t.Run("invalid json", func(t *testing.T) {
		c := NewWhisperASRClient("http://x")
		_, err := c.parseResponse([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("empty text", func(t *testing.T) {
		c := NewWhisperASRClient("http://x")
		_, err := c.parseResponse([]byte(`{"text":""}`))
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	})
}

func TestWhisperASRClient_Transcribe(t *testing.T) {
	audio := writeAudio(t)

	var gotMethod, gotOutput, gotLanguage string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotOutput = r.URL.Query().Get("output")
		gotLanguage = r.URL.Query().Get("language")

		f, _, err := r.FormFile("audio_file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotBody, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"meeting notes","language":"en"}`))
	}))
	defer srv.Close()

	c := NewWhisperASRClient(srv.URL, WithLanguage("en"), WithTimeout(5*time.Second))
	res, err := c.Transcribe(context.Background(), audio)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "json", gotOutput)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "RIFF fake wav", string(gotBody))
	assert.Equal(t, "meeting notes", res.Text)
	assert.Equal(t, "en", res.Language)
}

func TestWhisperASRClient_Transcribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWhisperASRClient(srv.URL)
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.False(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestWhisperASRClient_Transcribe_PayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	c := NewWhisperASRClient(srv.URL)
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWhisperASRClient_Transcribe_FileNotFound(t *testing.T) {
	c := NewWhisperASRClient("http://127.0.0.1:1")
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestWhisperASRClient_Transcribe_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewWhisperASRClient(srv.URL)
	_, err := c.Transcribe(ctx, writeAudio(t))
	assert.Error(t, err)
}

func TestWhisperASRClient_TimeoutSurvivesHTTPClientOption(t *testing.T) {
	tests := []struct {
		name string
		opts []WhisperASROption
		want time.Duration
	}{
		{"default", nil, DefaultTimeout},
		{"timeout only", []WhisperASROption{WithTimeout(time.Second)}, time.Second},
		{"timeout before client", []WhisperASROption{WithTimeout(time.Second), WithHTTPClient(&http.Client{})}, time.Second},
		{"timeout after client", []WhisperASROption{WithHTTPClient(&http.Client{}), WithTimeout(time.Second)}, time.Second},
		{"client only", []WhisperASROption{WithHTTPClient(&http.Client{})}, DefaultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWhisperASRClient("http://localhost:9000", tt.opts...)
			assert.Equal(t, tt.want, c.http.GetClient().Timeout)
		})
	}
}

func TestWhisperASRClient_TimeoutAppliesToRequests(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewWhisperASRClient(srv.URL, WithTimeout(50*time.Millisecond), WithHTTPClient(&http.Client{}))
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	assert.Error(t, err)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "audio/wav", MIMEType("/a/b/clip.WAV"))
	assert.Equal(t, "audio/mp4", MIMEType("clip.m4a"))
	assert.Equal(t, "application/octet-stream", MIMEType("clip.bin"))
}

var (
	_ TranscriptionClient = (*WhisperASRClient)(nil)
	_ TranscriptionClient = (*GeminiClient)(nil)
)
