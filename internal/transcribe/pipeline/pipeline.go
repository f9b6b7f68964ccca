// Package pipeline drives a single recording from admission to transcript.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/archive"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/client"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/registry"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/stabilizer"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/transcoder"
	"github.com/TechnicallyShaun/scribe/internal/transcribe/writer"
)

// DefaultStabilizationDelay is the wait before a new recording is read.
const DefaultStabilizationDelay = time.Second

// payloadTooLargeHint is logged when the service rejects a recording for its size.
const payloadTooLargeHint = "recording is too large for the transcription service; split it into shorter parts and process them individually"

var (
	// ErrNoTranscoder is returned by New when Options.Transcoder is nil.
	ErrNoTranscoder = errors.New("pipeline: transcoder is required")
	// ErrNoTranscriber is returned by New when Options.Transcriber is nil.
	ErrNoTranscriber = errors.New("pipeline: transcriber is required")
)

// Status is the terminal result of a run.
type Status int

const (
	StatusCompleted Status = iota + 1
	StatusAborted
	// StatusDuplicate means the path already had a run in flight; nothing was done.
	StatusDuplicate
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Outcome describes how a run ended.
type Outcome struct {
	RunID  string
	Path   string
	Status Status
	// Stage is the last stage entered before the run ended.
	Stage          Stage
	Copied         bool
	TranscriptPath string
	Elapsed        time.Duration
	Err            *RunError
}

// Failed reports whether the run aborted for a reason other than the
// recording disappearing.
func (o Outcome) Failed() bool {
	return o.Err != nil && o.Err.Kind != KindNotFound
}

// Options configures a Pipeline. Transcoder and Transcriber are required.
type Options struct {
	Registry    *registry.Registry
	Stabilizer  stabilizer.Stabilizer
	Transcoder  transcoder.Transcoder
	Transcriber client.TranscriptionClient
	Writer      writer.OutputWriter
	Logger      logging.Logger
	Layout      Layout

	// MaxConcurrentUploads bounds runs in the transcription stage; 0 means unbounded.
	MaxConcurrentUploads int
}

// Pipeline executes runs. It is safe for concurrent use.
type Pipeline struct {
	registry    *registry.Registry
	stabilizer  stabilizer.Stabilizer
	transcoder  transcoder.Transcoder
	transcriber client.TranscriptionClient
	writer      writer.OutputWriter
	logger      logging.Logger
	layout      Layout
	uploads     *semaphore.Weighted
}

// New creates a pipeline, filling unset options with defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Transcoder == nil {
		return nil, ErrNoTranscoder
	}
	if opts.Transcriber == nil {
		return nil, ErrNoTranscriber
	}

	p := &Pipeline{
		registry:    opts.Registry,
		stabilizer:  opts.Stabilizer,
		transcoder:  opts.Transcoder,
		transcriber: opts.Transcriber,
		writer:      opts.Writer,
		logger:      opts.Logger,
		layout:      opts.Layout.withDefaults(),
	}
	if p.registry == nil {
		p.registry = registry.New()
	}
	if p.stabilizer == nil {
		p.stabilizer = stabilizer.NewFixedDelay(DefaultStabilizationDelay)
	}
	if p.writer == nil {
		p.writer = writer.NewTextWriter()
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if opts.MaxConcurrentUploads > 0 {
		p.uploads = semaphore.NewWeighted(int64(opts.MaxConcurrentUploads))
	}
	return p, nil
}

// Registry returns the in-flight registry the pipeline admits against.
func (p *Pipeline) Registry() *registry.Registry {
	return p.registry
}

// Admit claims path for a new run. It does not block. When path already
// has a run in flight it returns false and the event should be dropped.
// An admitted run must be passed to Execute, which releases the claim.
func (p *Pipeline) Admit(path string, observedAt time.Time) (*Run, bool) {
	release, ok := p.registry.Acquire(path)
	if !ok {
		p.logger.Debug("already in flight, event dropped", logging.String("path", path))
		return nil, false
	}

	run := newRun(path, p.layout, observedAt)
	run.release = release
	p.logger.Debug("stage", p.runFields(run, logging.String("stage", StageAdmitted.String()))...)
	return run, true
}

// Execute runs every stage for an admitted run. It never panics and never
// returns an error; failures are logged and reported in the Outcome. The
// intermediate file is removed and the registry entry released on every path.
func (p *Pipeline) Execute(ctx context.Context, run *Run) (out Outcome) {
	start := time.Now()
	out = Outcome{RunID: run.ID, Path: run.SourcePath, Stage: StageAdmitted}

	defer func() {
		if r := recover(); r != nil {
			out.Err = &RunError{
				Kind:  KindInternal,
				Stage: out.Stage,
				Path:  run.SourcePath,
				Err:   fmt.Errorf("panic: %v", r),
			}
		}
		if out.Err != nil {
			out.Status = StatusAborted
		} else {
			out.Status = StatusCompleted
		}
		out.Elapsed = time.Since(start)

		p.removeIntermediate(run)
		p.logOutcome(run, out)
		p.release(run)
	}()

	out.Err = p.stages(ctx, run, &out)
	return out
}

// Process admits and executes path synchronously.
func (p *Pipeline) Process(ctx context.Context, path string) Outcome {
	run, ok := p.Admit(path, time.Now())
	if !ok {
		return Outcome{Path: path, Status: StatusDuplicate}
	}
	return p.Execute(ctx, run)
}

func (p *Pipeline) stages(ctx context.Context, run *Run, out *Outcome) *RunError {
	p.enter(run, out, StageStabilizing)
	if err := p.stabilizer.WaitForStable(ctx, run.SourcePath); err != nil {
		if os.IsNotExist(err) {
			return p.fail(ctx, run, out, KindNotFound, err)
		}
		return p.fail(ctx, run, out, KindTransientIO, err)
	}

	if _, err := os.Stat(run.SourcePath); err != nil {
		if os.IsNotExist(err) {
			return p.fail(ctx, run, out, KindNotFound, err)
		}
		return p.fail(ctx, run, out, KindTransientIO, fmt.Errorf("stat source: %w", err))
	}

	p.enter(run, out, StageCopying)
	if err := os.MkdirAll(run.TranscriptFolder, 0o755); err != nil {
		return p.fail(ctx, run, out, KindTransientIO, fmt.Errorf("create transcript folder: %w", err))
	}

	res, err := archive.Preserve(ctx, run.SourcePath, run.TranscriptFolder)
	if err != nil {
		if errors.Is(err, archive.ErrSourceNotFound) {
			return p.fail(ctx, run, out, KindNotFound, err)
		}
		return p.fail(ctx, run, out, KindTransientIO, fmt.Errorf("preserve original: %w", err))
	}
	out.Copied = res.Copied
	if !res.Copied {
		p.logger.Debug("original already preserved", p.runFields(run, logging.String("copy", res.Path))...)
	}

	p.enter(run, out, StageTranscoding)
	if err := p.transcoder.Transcode(ctx, run.SourcePath, run.IntermediatePath); err != nil {
		if errors.Is(err, transcoder.ErrNotInstalled) {
			return p.fail(ctx, run, out, KindConfig, err)
		}
		return p.fail(ctx, run, out, KindTranscode, err)
	}

	p.enter(run, out, StageTranscribing)
	result, err := p.transcribe(ctx, run)
	if err != nil {
		return p.fail(ctx, run, out, KindTranscription, err)
	}

	p.enter(run, out, StagePersisting)
	path, err := p.writer.Write(ctx, run.TranscriptFolder, run.BaseName, result.Text)
	if err != nil {
		return p.fail(ctx, run, out, KindTransientIO, fmt.Errorf("write transcript: %w", err))
	}
	out.TranscriptPath = path

	out.Stage = StageCompleted
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, run *Run) (*client.TranscriptionResult, error) {
	if p.uploads != nil {
		if err := p.uploads.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer p.uploads.Release(1)
	}

	fields := []logging.Field{logging.String("upload", run.IntermediatePath)}
	if info, err := os.Stat(run.IntermediatePath); err == nil {
		fields = append(fields, logging.Float64("size_mb", megabytes(info.Size())))
	}
	p.logger.Info("uploading for transcription", p.runFields(run, fields...)...)

	return p.transcriber.Transcribe(ctx, run.IntermediatePath)
}

// fail builds the RunError for the current stage. A cancelled run context
// takes precedence over the stage's own kind.
func (p *Pipeline) fail(ctx context.Context, run *Run, out *Outcome, kind Kind, err error) *RunError {
	re := &RunError{Kind: kind, Stage: out.Stage, Path: run.SourcePath, Err: err}
	switch {
	case kind == KindNotFound:
	case ctx.Err() != nil:
		re.Kind = KindCancelled
	case kind == KindTranscription && errors.Is(err, client.ErrPayloadTooLarge):
		re.Sub = SubPayloadTooLarge
	case kind == KindTranscription:
		re.Sub = SubOther
	}
	return re
}

func (p *Pipeline) enter(run *Run, out *Outcome, stage Stage) {
	out.Stage = stage
	p.logger.Debug("stage", p.runFields(run, logging.String("stage", stage.String()))...)
}

func (p *Pipeline) removeIntermediate(run *Run) {
	err := os.Remove(run.IntermediatePath)
	if err != nil && !os.IsNotExist(err) {
		p.logger.Warn("could not remove intermediate file",
			p.runFields(run, logging.String("intermediate", run.IntermediatePath), logging.String("error", err.Error()))...)
	}
}

func (p *Pipeline) release(run *Run) {
	if run.release != nil {
		run.release()
	} else {
		p.registry.Release(run.SourcePath)
	}
	p.logger.Debug("stage", p.runFields(run, logging.String("stage", StageReleased.String()))...)
}

func (p *Pipeline) logOutcome(run *Run, out Outcome) {
	elapsed := logging.Duration("elapsed", out.Elapsed.Round(time.Millisecond))

	if out.Err == nil {
		fields := []logging.Field{
			logging.String("meeting", run.Meeting()),
			logging.String("file", filepath.Base(run.SourcePath)),
			logging.String("transcript", out.TranscriptPath),
			logging.Bool("copied", out.Copied),
			elapsed,
		}
		if info, err := os.Stat(run.SourcePath); err == nil {
			fields = append(fields, logging.Float64("size_mb", megabytes(info.Size())))
		}
		p.logger.Info("recording processed", p.runFields(run, fields...)...)
		return
	}

	e := out.Err
	fields := p.runFields(run,
		logging.String("stage", e.Stage.String()),
		logging.String("kind", e.Kind.String()),
		elapsed,
	)

	switch {
	case e.Kind == KindNotFound:
		p.logger.Info("recording no longer exists, skipped", fields...)
	case e.Sub == SubPayloadTooLarge:
		fields = append(fields, logging.String("hint", payloadTooLargeHint))
		p.logger.Error("recording too large to transcribe", e.Err, fields...)
	case e.Kind == KindCancelled:
		p.logger.Warn("recording run cancelled", append(fields, logging.String("error", e.Err.Error()))...)
	default:
		if e.Sub != SubNone {
			fields = append(fields, logging.String("sub", e.Sub.String()))
		}
		p.logger.Error("recording failed", e.Err, fields...)
	}
}

func (p *Pipeline) runFields(run *Run, extra ...logging.Field) []logging.Field {
	fields := make([]logging.Field, 0, len(extra)+2)
	fields = append(fields, logging.String("run_id", run.ID), logging.String("path", run.SourcePath))
	return append(fields, extra...)
}

func megabytes(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
