package pipeline

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is a step of the run state machine.
type Stage int

const (
	StageAdmitted Stage = iota
	StageStabilizing
	StageCopying
	StageTranscoding
	StageTranscribing
	StagePersisting
	StageCompleted
	StageAborted
	StageReleased
)

var stageNames = [...]string{
	StageAdmitted:     "admitted",
	StageStabilizing:  "stabilizing",
	StageCopying:      "copying",
	StageTranscoding:  "transcoding",
	StageTranscribing: "transcribing",
	StagePersisting:   "persisting",
	StageCompleted:    "completed",
	StageAborted:      "aborted",
	StageReleased:     "released",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Layout decides where a recording's artifacts go.
type Layout struct {
	// TranscriptDir is created inside the recording folder.
	TranscriptDir string
	// IntermediateExt is the extension of the transcoded upload.
	IntermediateExt string
}

// Default layout values.
const (
	DefaultTranscriptDir   = "transcript"
	DefaultIntermediateExt = ".wav"
)

// DefaultLayout returns the standard layout.
func DefaultLayout() Layout {
	return Layout{
		TranscriptDir:   DefaultTranscriptDir,
		IntermediateExt: DefaultIntermediateExt,
	}
}

func (l Layout) withDefaults() Layout {
	if l.TranscriptDir == "" {
		l.TranscriptDir = DefaultTranscriptDir
	}
	if l.IntermediateExt == "" {
		l.IntermediateExt = DefaultIntermediateExt
	}
	return l
}

// Run holds the paths of one pipeline run. It is built at admission and
// not modified afterwards.
type Run struct {
	ID               string
	SourcePath       string
	RecordingFolder  string
	TranscriptFolder string
	BaseName         string
	Extension        string
	CopyPath         string
	IntermediatePath string
	TranscriptPath   string
	ObservedAt       time.Time

	release func()
}

// Meeting returns the name of the recording folder.
func (r *Run) Meeting() string {
	return filepath.Base(r.RecordingFolder)
}

// newRun derives every path of a run from the source path. The recording
// folder is two levels above the file: <meeting>/<marker>/<file>.
func newRun(path string, layout Layout, observedAt time.Time) *Run {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	recordingFolder := filepath.Dir(filepath.Dir(path))
	transcriptFolder := filepath.Join(recordingFolder, layout.TranscriptDir)

	intermediate := base + layout.IntermediateExt
	if strings.EqualFold(ext, layout.IntermediateExt) {
		intermediate = base + ".transcode" + layout.IntermediateExt
	}

	return &Run{
		ID:               uuid.NewString(),
		SourcePath:       path,
		RecordingFolder:  recordingFolder,
		TranscriptFolder: transcriptFolder,
		BaseName:         base,
		Extension:        ext,
		CopyPath:         filepath.Join(transcriptFolder, name),
		IntermediatePath: filepath.Join(transcriptFolder, intermediate),
		TranscriptPath:   filepath.Join(transcriptFolder, base+".txt"),
		ObservedAt:       observedAt,
	}
}
