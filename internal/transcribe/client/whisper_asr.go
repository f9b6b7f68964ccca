package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// OutputFormat specifies the response format from the transcription API.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 5 * time.Minute

// WhisperASRClient implements TranscriptionClient for onerahmet/openai-whisper-asr-webservice.
type WhisperASRClient struct {
	baseURL  string
	http     *resty.Client
	timeout  time.Duration
	output   OutputFormat
	language string
}

// WhisperASROption configures the WhisperASRClient.
type WhisperASROption func(*WhisperASRClient)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.timeout = d
	}
}

// WithOutputFormat sets the response format (text or json).
func WithOutputFormat(format OutputFormat) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.output = format
	}
}

// WithLanguage sets the spoken language; "auto" or "" lets the service detect it.
func WithLanguage(lang string) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.language = lang
	}
}

// WithHTTPClient sets a custom HTTP client. The request timeout still comes
// from WithTimeout (or DefaultTimeout), whatever the option order.
func WithHTTPClient(client *http.Client) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.http = resty.NewWithClient(client)
	}
}

// NewWhisperASRClient creates a new client for the whisper-asr-webservice.
func NewWhisperASRClient(baseURL string, opts ...WhisperASROption) *WhisperASRClient {
	c := &WhisperASRClient{
		baseURL: baseURL,
		http:    resty.New(),
		timeout: DefaultTimeout,
		output:  OutputFormatJSON,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.http.SetTimeout(c.timeout)

	return c
}

// Transcribe uploads an audio file to the whisper-asr-webservice and returns
// the transcription. HTTP 413 is reported as ErrPayloadTooLarge.
func (c *WhisperASRClient) Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error) {
	reqURL, err := c.buildURL()
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFile("audio_file", audioPath).
		Post(reqURL)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusRequestEntityTooLarge:
		return nil, fmt.Errorf("%w: API error: status %d", ErrPayloadTooLarge, status)
	case status != http.StatusOK:
		return nil, fmt.Errorf("API error: status %d: %s", status, resp.String())
	}

	return c.parseResponse(resp.Body())
}

func (c *WhisperASRClient) buildURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	// Ensure path ends with /asr
	if u.Path == "" || u.Path == "/" {
		u.Path = "/asr"
	}

	q := u.Query()
	q.Set("output", string(c.output))

	if c.language != "" && c.language != "auto" {
		q.Set("language", c.language)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *WhisperASRClient) parseResponse(data []byte) (*TranscriptionResult, error) {
	if c.output == OutputFormatText {
		if len(data) == 0 {
			return nil, ErrEmptyTranscript
		}
		return &TranscriptionResult{
			Text: string(data),
		}, nil
	}

	var resp whisperASRResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}
	if resp.Text == "" {
		return nil, ErrEmptyTranscript
	}

	return &TranscriptionResult{
		Text:     resp.Text,
		Language: resp.Language,
	}, nil
}

// whisperASRResponse represents the JSON response from the whisper-asr-webservice.
type whisperASRResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
