package pipeline

import "fmt"

// Kind classifies why a run aborted.
type Kind int

const (
	// KindConfig is a missing or invalid setting discovered during a run.
	KindConfig Kind = iota + 1
	// KindTransientIO covers directory creation, copy and persistence failures.
	KindTransientIO
	// KindTranscode means the transcoder exited with an error.
	KindTranscode
	// KindTranscription means the speech-to-text service failed; see Sub.
	KindTranscription
	// KindNotFound means the recording disappeared before it could be read.
	// It is an expected race and is not reported as a failure.
	KindNotFound
	// KindCancelled means the run context was cancelled.
	KindCancelled
	// KindInternal is a recovered panic.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransientIO:
		return "io"
	case KindTranscode:
		return "transcode"
	case KindTranscription:
		return "transcription"
	case KindNotFound:
		return "not_found"
	case KindCancelled:
		return "cancelled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// TranscriptionSub refines KindTranscription.
type TranscriptionSub int

const (
	SubNone TranscriptionSub = iota
	SubPayloadTooLarge
	SubOther
)

func (s TranscriptionSub) String() string {
	switch s {
	case SubPayloadTooLarge:
		return "payload_too_large"
	case SubOther:
		return "other"
	default:
		return ""
	}
}

// RunError is the typed failure of a single run.
type RunError struct {
	Kind  Kind
	Sub   TranscriptionSub
	Stage Stage
	Path  string
	Err   error
}

func (e *RunError) Error() string {
	if e.Sub != SubNone {
		return fmt.Sprintf("%s: %s (%s) failed at %s: %v", e.Path, e.Kind, e.Sub, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s failed at %s: %v", e.Path, e.Kind, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
