package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/client"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/filter"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/pipeline"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/stabilizer"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/transcoder"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/watcher"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/writer"
)

// Service watches a directory tree and runs the pipeline for each new recording.
type Service struct {
	config   *Config
	logger   *logging.FileLogger
	watcher  watcher.FileWatcher
	filter   *filter.Filter
	pipeline *pipeline.Pipeline

	wg sync.WaitGroup
}

// ServiceOption replaces a collaborator that NewService would otherwise
// build from the config.
type ServiceOption func(*serviceDeps)

type serviceDeps struct {
	watcher     watcher.FileWatcher
	transcoder  transcoder.Transcoder
	transcriber client.TranscriptionClient
	stabilizer  stabilizer.Stabilizer
}

// WithWatcher sets the notification source.
func WithWatcher(w watcher.FileWatcher) ServiceOption {
	return func(d *serviceDeps) { d.watcher = w }
}

// WithTranscoder sets the transcoder and skips the ffmpeg availability check.
func WithTranscoder(t transcoder.Transcoder) ServiceOption {
	return func(d *serviceDeps) { d.transcoder = t }
}

// WithTranscriber sets the speech-to-text client.
func WithTranscriber(t client.TranscriptionClient) ServiceOption {
	return func(d *serviceDeps) { d.transcriber = t }
}

// WithStabilizer sets the stabilization wait.
func WithStabilizer(s stabilizer.Stabilizer) ServiceOption {
	return func(d *serviceDeps) { d.stabilizer = s }
}

// NewService validates cfg and initializes all components. A nil logger
// discards output.
func NewService(ctx context.Context, cfg *Config, logger *logging.FileLogger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var deps serviceDeps
	for _, opt := range opts {
		opt(&deps)
	}

	if deps.transcoder == nil {
		ff := transcoder.NewFFmpeg(
			transcoder.WithBinary(cfg.Transcoder.FFmpegPath),
			transcoder.WithCodec(cfg.Transcoder.Codec),
			transcoder.WithSampleRate(cfg.Transcoder.SampleRate),
		)
		if err := ff.CheckAvailable(); err != nil {
			return nil, &ConfigError{Field: "transcoder.ffmpeg_path", Err: err}
		}
		deps.transcoder = ff
	}

	if deps.transcriber == nil {
		tc, err := NewTranscriber(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.transcriber = tc
	}

	if deps.stabilizer == nil {
		deps.stabilizer = NewStabilizer(cfg)
	}

	if deps.watcher == nil {
		watchLogger := logger.WithComponent("watcher")
		fw, err := watcher.NewFSNotifyWatcher(watcher.WithErrorHandler(func(err error) {
			watchLogger.Warn("watcher error", logging.String("error", err.Error()))
		}))
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		deps.watcher = fw
	}

	p, err := pipeline.New(pipeline.Options{
		Stabilizer:  deps.stabilizer,
		Transcoder:  deps.transcoder,
		Transcriber: deps.transcriber,
		Writer:      writer.NewTextWriter(),
		Logger:      logger.WithComponent("pipeline"),
		Layout: pipeline.Layout{
			TranscriptDir:   cfg.TranscriptDir,
			IntermediateExt: cfg.Transcoder.IntermediateExt,
		},
		MaxConcurrentUploads: cfg.MaxConcurrentUploads,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		config:  cfg,
		logger:  logger.WithComponent("service"),
		watcher: deps.watcher,
		filter: &filter.Filter{
			TempSuffix:   cfg.TempSuffix,
			SourceMarker: cfg.SourceMarker,
			Extension:    cfg.RecordingExt,
		},
		pipeline: p,
	}, nil
}

// NewTranscriber builds the client for the configured backend.
func NewTranscriber(ctx context.Context, cfg *Config) (client.TranscriptionClient, error) {
	tc := cfg.Transcriber
	switch tc.Backend {
	case BackendGemini:
		gc, err := client.NewGeminiClient(ctx, tc.Gemini.APIKey,
			client.WithModel(tc.Gemini.Model),
			client.WithPrompt(tc.Gemini.Prompt),
			client.WithRequestTimeout(cfg.TranscriberTimeout()),
		)
		if err != nil {
			return nil, err
		}
		return gc, nil
	case BackendWhisper:
		return client.NewWhisperASRClient(tc.Whisper.APIURL,
			client.WithLanguage(tc.Whisper.Language),
			client.WithTimeout(cfg.TranscriberTimeout()),
		), nil
	default:
		return nil, &ConfigError{Field: "transcriber.backend", Err: fmt.Errorf("%w: %q", ErrInvalidValue, tc.Backend)}
	}
}

// NewStabilizer builds the stabilization wait for the configured mode.
func NewStabilizer(cfg *Config) stabilizer.Stabilizer {
	if cfg.Stabilization.Mode == StabilizePoll {
		return stabilizer.NewPollStabilizer(cfg.StabilizationInterval(), cfg.Stabilization.Checks)
	}
	return stabilizer.NewFixedDelay(cfg.StabilizationDelay())
}

// Watch subscribes to root and its subdirectories and dispatches a run for
// each admitted recording. An empty root means the configured RootDir. It
// blocks until ctx is cancelled, then stops intake, waits for every
// dispatched run to finish and returns nil.
//
// Runs do not inherit ctx's cancellation. With a drain timeout configured,
// runs still going when it expires are cancelled.
func (s *Service) Watch(ctx context.Context, root string) error {
	if root == "" {
		root = s.config.RootDir
	}
	root = expandTilde(root)
	if err := CheckRootDir(root); err != nil {
		_ = s.watcher.Stop()
		return err
	}

	events, err := s.watcher.Watch(ctx, root)
	if err != nil {
		_ = s.watcher.Stop()
		return fmt.Errorf("start watcher: %w", err)
	}

	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	s.logger.Info("watching for recordings",
		logging.String("root", root),
		logging.String("marker", s.config.SourceMarker),
		logging.String("extension", s.config.RecordingExt),
		logging.String("backend", s.config.Transcriber.Backend),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested")
			return s.shutdown(cancelRuns)

		case ev, ok := <-events:
			if !ok {
				s.logger.Info("watcher channel closed")
				return s.shutdown(cancelRuns)
			}
			s.handleEvent(runCtx, ev)
		}
	}
}

// handleEvent filters and admits synchronously, then executes the run in
// its own goroutine.
func (s *Service) handleEvent(ctx context.Context, ev watcher.Event) {
	if !s.filter.Accept(ev) {
		return
	}

	run, ok := s.pipeline.Admit(ev.Path, ev.ObservedAt)
	if !ok {
		return
	}

	s.logger.Info("recording detected",
		logging.String("path", ev.Path),
		logging.String("event", ev.Kind.String()),
		logging.String("run_id", run.ID),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pipeline.Execute(ctx, run)
	}()
}

// ProcessFile runs the pipeline once for path, bypassing the event filter.
// The returned error is the run's failure, if any.
func (s *Service) ProcessFile(ctx context.Context, path string) (pipeline.Outcome, error) {
	abs, err := filepath.Abs(expandTilde(path))
	if err != nil {
		return pipeline.Outcome{}, err
	}

	out := s.pipeline.Process(ctx, abs)
	if out.Err != nil {
		return out, out.Err
	}
	return out, nil
}

// InFlight returns the number of runs currently admitted.
func (s *Service) InFlight() int {
	return s.pipeline.Registry().Len()
}

// shutdown stops intake and waits for dispatched runs.
func (s *Service) shutdown(cancelRuns context.CancelFunc) error {
	if err := s.watcher.Stop(); err != nil {
		s.logger.Error("error stopping watcher", err)
	}

	s.logger.Info("waiting for in-flight runs to complete", logging.Int("in_flight", s.InFlight()))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if timeout := s.config.DrainTimeout(); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			s.logger.Warn("drain timeout reached, cancelling runs",
				logging.Duration("timeout", timeout),
				logging.Int("in_flight", s.InFlight()),
			)
			cancelRuns()
			<-done
		}
	} else {
		<-done
	}

	s.logger.Info("watcher stopped")
	return nil
}
