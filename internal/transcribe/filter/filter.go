// Package filter decides which filesystem notifications are candidate
// recordings. It only inspects path strings; whether the file exists or is
// still being written is the pipeline's concern.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/TechnicallyShaun/scribe/internal/transcribe/watcher"
)

// Defaults match the layout produced by the recording application:
// <meeting>/Audio Record/<clip>.m4a
const (
	DefaultTempSuffix   = ".tmp"
	DefaultSourceMarker = "Audio Record"
	DefaultExtension    = ".m4a"
)

// Filter classifies events as recordings or noise.
type Filter struct {
	// TempSuffix rejects in-progress files written under a temporary name.
	TempSuffix string
	// SourceMarker must equal the name of the file's parent directory.
	SourceMarker string
	// Extension is the recording container extension, matched case-insensitively.
	Extension string
}

// Default returns a Filter with the default rules.
func Default() *Filter {
	return &Filter{
		TempSuffix:   DefaultTempSuffix,
		SourceMarker: DefaultSourceMarker,
		Extension:    DefaultExtension,
	}
}

// Accept reports whether the event's path is a candidate recording.
func (f *Filter) Accept(ev watcher.Event) bool {
	return f.Match(ev.Path)
}

// Match applies the rules in order: temp suffix, source marker, extension.
func (f *Filter) Match(path string) bool {
	if f.TempSuffix != "" && strings.HasSuffix(path, f.TempSuffix) {
		return false
	}
	if f.SourceMarker != "" && filepath.Base(filepath.Dir(path)) != f.SourceMarker {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), f.Extension)
}
