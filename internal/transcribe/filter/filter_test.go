package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/watcher"
)

func TestFilter_Match(t *testing.T) {
	f := Default()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"recording", "/zoom/meeting/Audio Record/clip.m4a", true},
		{"relative recording", "meeting/Audio Record/clip.m4a", true},
		{"upper-case extension", "/zoom/meeting/Audio Record/clip.M4A", true},
		{"nested below marker", "/zoom/meeting/Audio Record/extra/clip.m4a", false},
		{"copy under nested transcript", "/zoom/meeting/Audio Record/transcript/clip.m4a", false},
		{"marker above root", "/Audio Record/zoom/meeting/clip.m4a", false},
		{"temp file", "/zoom/meeting/Audio Record/clip.m4a.tmp", false},
		{"temp suffix wins over extension", "/zoom/meeting/Audio Record/clip.tmp", false},
		{"missing marker", "/zoom/meeting/Video/clip.m4a", false},
		{"marker only as partial segment", "/zoom/meeting/Audio Recordings/clip.m4a", false},
		{"marker as filename", "/zoom/meeting/Audio Record.m4a", false},
		{"wrong extension", "/zoom/meeting/Audio Record/clip.mp3", false},
		{"no extension", "/zoom/meeting/Audio Record/clip", false},
		{"transcript copy", "/zoom/meeting/transcript/clip.m4a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.path))
		})
	}
}

func TestFilter_AcceptUsesPathOnly(t *testing.T) {
	f := Default()
	// The file does not exist; the filter must not care.
	ev := watcher.Event{
		Path:       "/does/not/exist/Audio Record/clip.m4a",
		Kind:       watcher.Modified,
		ObservedAt: time.Now(),
	}
	assert.True(t, f.Accept(ev))
}

func TestFilter_CustomRules(t *testing.T) {
	f := &Filter{TempSuffix: ".part", SourceMarker: "Recordings", Extension: ".wav"}

	assert.True(t, f.Match("/x/Recordings/a.wav"))
	assert.False(t, f.Match("/x/Recordings/a.wav.part"))
	assert.False(t, f.Match("/x/Audio Record/a.wav"))
}

func TestFilter_EmptyMarkerAcceptsAnyDirectory(t *testing.T) {
	f := &Filter{Extension: ".m4a"}
	assert.True(t, f.Match("/anywhere/a.m4a"))
}
