// Package transcribe wires the recording watcher and pipeline into a service.
package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/TechnicallyShaun/scribe/internal/appdir"
)

// ConfigFileName is the name of the config file inside the app directory.
const ConfigFileName = "config.json"

// EnvPrefix prefixes every environment override, e.g. SCRIBE_ROOT_DIR.
const EnvPrefix = "SCRIBE"

// Legacy environment variables still honoured for the two settings that
// need to be set on a fresh install.
const (
	EnvRootDirAlias = "DROPBOX_PATH"
	EnvAPIKeyAlias  = "GOOGLE_API_KEY"
)

// Transcriber backends.
const (
	BackendGemini  = "gemini"
	BackendWhisper = "whisper"
)

// Stabilization modes.
const (
	StabilizeFixed = "fixed"
	StabilizePoll  = "poll"
)

// Default values for optional configuration fields
const (
	DefaultSourceMarker            = "Audio Record"
	DefaultRecordingExt            = ".m4a"
	DefaultTempSuffix              = ".tmp"
	DefaultTranscriptDir           = "transcript"
	DefaultStabilizationDelayMs    = 1000
	DefaultStabilizationIntervalMs = 1000
	DefaultStabilizationChecks     = 3
	DefaultFFmpegPath              = "ffmpeg"
	DefaultCodec                   = "pcm_s16le"
	DefaultSampleRate              = 44100
	DefaultIntermediateExt         = ".wav"
	DefaultGeminiModel             = "gemini-2.5-pro"
	DefaultGeminiPrompt            = "Please transcribe this audio. Provide ONLY the transcription, nothing else."
	DefaultLanguage                = "auto"
	DefaultTimeoutSec              = 300
	DefaultLogLevel                = "info"
	DefaultLogMaxSizeMB            = 10
	DefaultLogMaxBackups           = 5
	DefaultLogMaxAgeDays           = 30
)

// Config represents the scribe configuration.
type Config struct {
	RootDir              string              `mapstructure:"root_dir" json:"root_dir" validate:"required"`
	SourceMarker         string              `mapstructure:"source_marker" json:"source_marker" validate:"required"`
	RecordingExt         string              `mapstructure:"recording_ext" json:"recording_ext" validate:"required,startswith=."`
	TempSuffix           string              `mapstructure:"temp_suffix" json:"temp_suffix" validate:"required"`
	TranscriptDir        string              `mapstructure:"transcript_dir" json:"transcript_dir" validate:"required,excludesall=/\\"`
	Stabilization        StabilizationConfig `mapstructure:"stabilization" json:"stabilization"`
	Transcoder           TranscoderConfig    `mapstructure:"transcoder" json:"transcoder"`
	Transcriber          TranscriberConfig   `mapstructure:"transcriber" json:"transcriber"`
	MaxConcurrentUploads int                 `mapstructure:"max_concurrent_uploads" json:"max_concurrent_uploads" validate:"gte=0"`
	DrainTimeoutSec      int                 `mapstructure:"drain_timeout_sec" json:"drain_timeout_sec" validate:"gte=0"`
	Log                  LogConfig           `mapstructure:"log" json:"log"`
}

// StabilizationConfig controls the wait before a recording is read.
type StabilizationConfig struct {
	Mode       string `mapstructure:"mode" json:"mode" validate:"oneof=fixed poll"`
	DelayMs    int    `mapstructure:"delay_ms" json:"delay_ms" validate:"gte=0"`
	IntervalMs int    `mapstructure:"interval_ms" json:"interval_ms" validate:"gt=0"`
	Checks     int    `mapstructure:"checks" json:"checks" validate:"gt=0"`
}

// TranscoderConfig controls the ffmpeg conversion.
type TranscoderConfig struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path" json:"ffmpeg_path" validate:"required"`
	Codec           string `mapstructure:"codec" json:"codec" validate:"required"`
	SampleRate      int    `mapstructure:"sample_rate" json:"sample_rate" validate:"gt=0"`
	IntermediateExt string `mapstructure:"intermediate_ext" json:"intermediate_ext" validate:"required,startswith=."`
}

// TranscriberConfig selects and configures the speech-to-text backend.
type TranscriberConfig struct {
	Backend    string        `mapstructure:"backend" json:"backend" validate:"oneof=gemini whisper"`
	Gemini     GeminiConfig  `mapstructure:"gemini" json:"gemini"`
	Whisper    WhisperConfig `mapstructure:"whisper" json:"whisper"`
	TimeoutSec int           `mapstructure:"timeout_sec" json:"timeout_sec" validate:"gt=0"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" json:"api_key"`
	Model  string `mapstructure:"model" json:"model" validate:"required"`
	Prompt string `mapstructure:"prompt" json:"prompt" validate:"required"`
}

// WhisperConfig configures the whisper-asr-webservice backend.
type WhisperConfig struct {
	APIURL   string `mapstructure:"api_url" json:"api_url" validate:"omitempty,url"`
	Language string `mapstructure:"language" json:"language"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Dir        string `mapstructure:"dir" json:"dir"`
	Level      string `mapstructure:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	Console    bool   `mapstructure:"console" json:"console"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" validate:"gte=0"`
}

// Validation errors
var (
	ErrRootDirRequired = errors.New("root_dir is required")
	ErrRootDirNotFound = errors.New("root directory does not exist or is not a directory")
	ErrAPIKeyRequired  = errors.New("api_key is required for the gemini backend")
	ErrAPIURLRequired  = errors.New("api_url is required for the whisper backend")
	ErrInvalidValue    = errors.New("invalid value")
)

// ConfigError reports which setting is wrong.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns a Config with every optional field set.
func Default() *Config {
	logDir, _ := appdir.Join("logs")
	return &Config{
		SourceMarker:  DefaultSourceMarker,
		RecordingExt:  DefaultRecordingExt,
		TempSuffix:    DefaultTempSuffix,
		TranscriptDir: DefaultTranscriptDir,
		Stabilization: StabilizationConfig{
			Mode:       StabilizeFixed,
			DelayMs:    DefaultStabilizationDelayMs,
			IntervalMs: DefaultStabilizationIntervalMs,
			Checks:     DefaultStabilizationChecks,
		},
		Transcoder: TranscoderConfig{
			FFmpegPath:      DefaultFFmpegPath,
			Codec:           DefaultCodec,
			SampleRate:      DefaultSampleRate,
			IntermediateExt: DefaultIntermediateExt,
		},
		Transcriber: TranscriberConfig{
			Backend: BackendGemini,
			Gemini: GeminiConfig{
				Model:  DefaultGeminiModel,
				Prompt: DefaultGeminiPrompt,
			},
			Whisper:    WhisperConfig{Language: DefaultLanguage},
			TimeoutSec: DefaultTimeoutSec,
		},
		Log: LogConfig{
			Dir:        logDir,
			Level:      DefaultLogLevel,
			Console:    true,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

// DefaultConfigPath returns $SCRIBE_HOME/config.json.
func DefaultConfigPath() (string, error) {
	return appdir.Join(ConfigFileName)
}

// Load builds the configuration from defaults, the JSON config file and the
// environment, in increasing precedence. An empty configPath means the
// default location, which may be absent. The result is not validated.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("root_dir", EnvPrefix+"_ROOT_DIR", EnvRootDirAlias); err != nil {
		return nil, err
	}
	if err := v.BindEnv("transcriber.gemini.api_key", EnvPrefix+"_TRANSCRIBER_GEMINI_API_KEY", EnvAPIKeyAlias); err != nil {
		return nil, err
	}

	explicit := configPath != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
		if explicit || !missing {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.expandPaths()
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root_dir", d.RootDir)
	v.SetDefault("source_marker", d.SourceMarker)
	v.SetDefault("recording_ext", d.RecordingExt)
	v.SetDefault("temp_suffix", d.TempSuffix)
	v.SetDefault("transcript_dir", d.TranscriptDir)

	v.SetDefault("stabilization.mode", d.Stabilization.Mode)
	v.SetDefault("stabilization.delay_ms", d.Stabilization.DelayMs)
	v.SetDefault("stabilization.interval_ms", d.Stabilization.IntervalMs)
	v.SetDefault("stabilization.checks", d.Stabilization.Checks)

	v.SetDefault("transcoder.ffmpeg_path", d.Transcoder.FFmpegPath)
	v.SetDefault("transcoder.codec", d.Transcoder.Codec)
	v.SetDefault("transcoder.sample_rate", d.Transcoder.SampleRate)
	v.SetDefault("transcoder.intermediate_ext", d.Transcoder.IntermediateExt)

	v.SetDefault("transcriber.backend", d.Transcriber.Backend)
	v.SetDefault("transcriber.gemini.api_key", d.Transcriber.Gemini.APIKey)
	v.SetDefault("transcriber.gemini.model", d.Transcriber.Gemini.Model)
	v.SetDefault("transcriber.gemini.prompt", d.Transcriber.Gemini.Prompt)
	v.SetDefault("transcriber.whisper.api_url", d.Transcriber.Whisper.APIURL)
	v.SetDefault("transcriber.whisper.language", d.Transcriber.Whisper.Language)
	v.SetDefault("transcriber.timeout_sec", d.Transcriber.TimeoutSec)

	v.SetDefault("max_concurrent_uploads", d.MaxConcurrentUploads)
	v.SetDefault("drain_timeout_sec", d.DrainTimeoutSec)

	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Save writes the configuration as indented JSON, creating the parent
// directory. The file may hold an API key so it is private to the user.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks required fields, value ranges and backend requirements.
// Failures are returned as *ConfigError naming the offending key.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return &ConfigError{Field: "root_dir", Err: ErrRootDirRequired}
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{
				Field: fieldKey(fe.Namespace()),
				Err:   fmt.Errorf("%w: %q fails %s", ErrInvalidValue, fmt.Sprint(fe.Value()), fe.Tag()),
			}
		}
		return &ConfigError{Field: "config", Err: err}
	}

	switch c.Transcriber.Backend {
	case BackendGemini:
		if c.Transcriber.Gemini.APIKey == "" {
			return &ConfigError{Field: "transcriber.gemini.api_key", Err: ErrAPIKeyRequired}
		}
	case BackendWhisper:
		if c.Transcriber.Whisper.APIURL == "" {
			return &ConfigError{Field: "transcriber.whisper.api_url", Err: ErrAPIURLRequired}
		}
	}
	return nil
}

// fieldKey turns "Config.stabilization.mode" into "stabilization.mode".
func fieldKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// CheckRootDir verifies that dir exists and is a directory.
func CheckRootDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Field: "root_dir", Err: fmt.Errorf("%w: %s", ErrRootDirNotFound, dir)}
	}
	return nil
}

// Masked returns a copy with secrets replaced, for display.
func (c *Config) Masked() *Config {
	out := *c
	if key := out.Transcriber.Gemini.APIKey; key != "" {
		if len(key) > 4 {
			out.Transcriber.Gemini.APIKey = strings.Repeat("*", 8) + key[len(key)-4:]
		} else {
			out.Transcriber.Gemini.APIKey = strings.Repeat("*", 8)
		}
	}
	return &out
}

// StabilizationDelay returns the fixed-mode wait.
func (c *Config) StabilizationDelay() time.Duration {
	return time.Duration(c.Stabilization.DelayMs) * time.Millisecond
}

// StabilizationInterval returns the poll-mode check interval.
func (c *Config) StabilizationInterval() time.Duration {
	return time.Duration(c.Stabilization.IntervalMs) * time.Millisecond
}

// TranscriberTimeout returns the per-request transcription timeout.
func (c *Config) TranscriberTimeout() time.Duration {
	return time.Duration(c.Transcriber.TimeoutSec) * time.Second
}

// DrainTimeout returns how long shutdown waits before cancelling runs; 0 waits indefinitely.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSec) * time.Second
}

// expandPaths expands ~ to the user's home directory in path fields.
func (c *Config) expandPaths() {
	c.RootDir = expandTilde(c.RootDir)
	c.Log.Dir = expandTilde(c.Log.Dir)
	c.Transcoder.FFmpegPath = expandTilde(c.Transcoder.FFmpegPath)
}

// expandTilde expands ~ at the beginning of a path to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
