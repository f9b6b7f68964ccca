// Package status summarizes the watch log for the status command.
package status

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Log messages counted by ParseLogFile.
const (
	MsgProcessed = "recording processed"
	MsgSkipped   = "recording no longer exists, skipped"
)

// Stats holds statistics parsed from the log file.
type Stats struct {
	FilesProcessed int
	Skipped        int
	Errors         int
	LastProcessed  *ProcessedFile
}

// ProcessedFile holds information about the last processed recording.
type ProcessedFile struct {
	Timestamp  time.Time
	Path       string
	Meeting    string
	Transcript string
}

type logLine struct {
	Time       string `json:"time"`
	Level      string `json:"level"`
	Msg        string `json:"msg"`
	Path       string `json:"path"`
	Meeting    string `json:"meeting"`
	Transcript string `json:"transcript"`
}

// ParseTodayStats parses the entries of logPath written today (local time).
func ParseTodayStats(logPath string) (*Stats, error) {
	return ParseLogFile(logPath, time.Now())
}

// ParseLogFile counts the entries of path written on the same local day as
// day. Lines that are not JSON are ignored. Returns empty stats if the file
// doesn't exist.
func ParseLogFile(path string, day time.Time) (*Stats, error) {
	stats := &Stats{}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	defer file.Close()

	y, m, d := day.Local().Date()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}

		ts, err := time.Parse(time.RFC3339Nano, line.Time)
		if err != nil {
			continue
		}
		if ly, lm, ld := ts.Local().Date(); ly != y || lm != m || ld != d {
			continue
		}

		switch {
		case line.Level == "error":
			stats.Errors++
		case line.Msg == MsgProcessed:
			stats.FilesProcessed++
			stats.LastProcessed = &ProcessedFile{
				Timestamp:  ts,
				Path:       line.Path,
				Meeting:    line.Meeting,
				Transcript: line.Transcript,
			}
		case line.Msg == MsgSkipped:
			stats.Skipped++
		}
	}

	return stats, scanner.Err()
}

// FormatTimestamp formats a timestamp for display.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

// BaseName returns just the filename from a path.
func BaseName(path string) string {
	return filepath.Base(strings.TrimSuffix(path, "/"))
}
