// Package logging provides structured, leveled logging for the transcription
// service. Entries are written as JSON lines to a size-rotated file and,
// optionally, in human-readable form to a console writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/TechnicallyShaun/scribe/internal/appdir"
)

// Level represents a log severity level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel converts a config string (debug, info, warn, error) to a Level.
// Names are matched exactly; an empty string means info.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field, rendered as a Go duration string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Logger is the subset of FileLogger used by components that only emit lines.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Config configures the logger
type Config struct {
	// LogDir is the directory where log files are stored (default: ~/.scribe/logs)
	LogDir string
	// FileName is the active log file name (default: scribe.log)
	FileName string
	// MaxSizeMB is the size at which the file is rotated (default: 10)
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int
	// MaxAgeDays is the number of days to retain rotated files (default: 30)
	MaxAgeDays int
	// Component is attached to every entry as the "component" field
	Component string
	// MinLevel is the minimum log level to write (default: LevelInfo)
	MinLevel Level
	// Console, when set, also receives every entry in text form
	Console io.Writer
	// minLevelSet tracks whether MinLevel was explicitly configured
	minLevelSet bool
}

// WithMinLevel returns a copy of Config with the specified minimum log level
func (c Config) WithMinLevel(level Level) Config {
	c.MinLevel = level
	c.minLevelSet = true
	return c
}

// DefaultFileName is the active log file name inside LogDir.
const DefaultFileName = "scribe.log"

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	logDir, _ := appdir.Join("logs")
	return Config{
		LogDir:     logDir,
		FileName:   DefaultFileName,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		MinLevel:   LevelInfo,
	}
}

// FileLogger implements Logger on top of logrus
type FileLogger struct {
	entry *logrus.Entry
	file  *lumberjack.Logger
	path  string
}

// New creates a FileLogger writing JSON lines to LogDir/FileName.
func New(config Config) (*FileLogger, error) {
	if config.LogDir == "" {
		dir, err := appdir.Join("logs")
		if err != nil {
			return nil, err
		}
		config.LogDir = dir
	}
	if config.FileName == "" {
		config.FileName = DefaultFileName
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 10
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = 30
	}
	if config.MaxBackups < 0 {
		config.MaxBackups = 0
	}

	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(config.LogDir, config.FileName)
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}

	l := newLogger(file, config)
	l.file = file
	l.path = path
	return l, nil
}

// NewWithWriter creates a logger that writes JSON lines to w instead of a file.
func NewWithWriter(w io.Writer, config Config) *FileLogger {
	return newLogger(w, config)
}

// NewNop returns a logger that discards everything.
func NewNop() *FileLogger {
	return newLogger(io.Discard, Config{})
}

func newLogger(out io.Writer, config Config) *FileLogger {
	if !config.minLevelSet {
		config.MinLevel = LevelInfo
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(config.MinLevel.logrus())
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	if config.Console != nil {
		base.AddHook(&consoleHook{
			w: config.Console,
			formatter: &logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: time.RFC3339,
			},
		})
	}

	entry := logrus.NewEntry(base)
	if config.Component != "" {
		entry = entry.WithField("component", config.Component)
	}
	return &FileLogger{entry: entry}
}

// Info logs an informational message
func (l *FileLogger) Info(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Info(msg)
}

// Warn logs a recoverable problem
func (l *FileLogger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Warn(msg)
}

// Error logs an error message; err may be nil
func (l *FileLogger) Error(msg string, err error, fields ...Field) {
	e := l.entry.WithFields(toLogrus(fields))
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// Debug logs a debug message
func (l *FileLogger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Debug(msg)
}

// With returns a logger that adds fields to every entry
func (l *FileLogger) With(fields ...Field) *FileLogger {
	return &FileLogger{
		entry: l.entry.WithFields(toLogrus(fields)),
		file:  l.file,
		path:  l.path,
	}
}

// WithComponent returns a new logger with the specified component name
func (l *FileLogger) WithComponent(component string) *FileLogger {
	return l.With(String("component", component))
}

// Close flushes and closes the underlying file, if any
func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogPath returns the path to the active log file, or "" for writer loggers
func (l *FileLogger) LogPath() string {
	return l.path
}

func toLogrus(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// consoleHook mirrors entries to a second writer with its own formatter.
type consoleHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}
