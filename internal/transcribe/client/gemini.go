package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Gemini defaults.
const (
	DefaultGeminiModel  = "gemini-2.5-pro"
	DefaultGeminiPrompt = "Please transcribe this audio. Provide ONLY the transcription, nothing else."
	DefaultPollInterval = 2 * time.Second
)

// ErrUploadFailed is returned when the uploaded file never becomes usable.
var ErrUploadFailed = errors.New("uploaded file processing failed")

// geminiAPI is the subset of the genai client used for transcription.
type geminiAPI interface {
	Upload(ctx context.Context, path, mimeType string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// genaiAPI adapts *genai.Client to geminiAPI.
type genaiAPI struct {
	c *genai.Client
}

func (g genaiAPI) Upload(ctx context.Context, path, mimeType string) (*genai.File, error) {
	return g.c.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
}

func (g genaiAPI) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return g.c.Files.Get(ctx, name, nil)
}

func (g genaiAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := g.c.Files.Delete(ctx, name, nil)
	return err
}

func (g genaiAPI) Generate(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	return g.c.Models.GenerateContent(ctx, model, contents, nil)
}

// GeminiClient implements TranscriptionClient on the Gemini API file upload
// and content generation endpoints.
type GeminiClient struct {
	api          geminiAPI
	model        string
	prompt       string
	timeout      time.Duration
	pollInterval time.Duration
}

// GeminiOption configures the GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel sets the model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithPrompt sets the instruction sent alongside the audio.
func WithPrompt(prompt string) GeminiOption {
	return func(c *GeminiClient) {
		if prompt != "" {
			c.prompt = prompt
		}
	}
}

// WithRequestTimeout bounds a single Transcribe call.
func WithRequestTimeout(d time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		c.timeout = d
	}
}

// WithPollInterval sets how often upload state is checked.
func WithPollInterval(d time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		c.pollInterval = d
	}
}

// NewGeminiClient creates a client for the Gemini API using apiKey.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return newGeminiClient(genaiAPI{c: gc}, opts...), nil
}

func newGeminiClient(api geminiAPI, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		api:          api,
		model:        DefaultGeminiModel,
		prompt:       DefaultGeminiPrompt,
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads audioPath, asks the model for a transcript and deletes
// the uploaded file. Size rejections are reported as ErrPayloadTooLarge.
func (c *GeminiClient) Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	file, err := c.api.Upload(ctx, audioPath, MIMEType(audioPath))
	if err != nil {
		return nil, classify("upload", err)
	}
	defer c.deleteFile(ctx, file.Name)

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(c.prompt),
		}, genai.RoleUser),
	}

	resp, err := c.api.Generate(ctx, c.model, contents)
	if err != nil {
		return nil, classify("generate", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &TranscriptionResult{Text: text}, nil
}

func (c *GeminiClient) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		next, err := c.api.GetFile(ctx, file.Name)
		if err != nil {
			return nil, classify("get file", err)
		}
		file = next
	}

	if file.State == genai.FileStateFailed {
		if file.Error != nil && file.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, file.Error.Message)
		}
		return nil, ErrUploadFailed
	}
	return file, nil
}

// deleteFile removes the uploaded file even if ctx has been cancelled.
func (c *GeminiClient) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	_ = c.api.DeleteFile(dctx, name)
}

func classify(op string, err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	}
	if apiErr.Code == http.StatusRequestEntityTooLarge || isPayloadTooLargeMessage(err.Error()) {
		return fmt.Errorf("%s: %w: %v", op, ErrPayloadTooLarge, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
