// Package config provides configuration management for DayMind
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	configDirName = ".daymind"
	envPrefix     = "DAYMIND"
)

// Config holds all application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	User     UserConfig     `mapstructure:"user"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// APIConfig configures the backend client
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// UserConfig holds user preferences
type UserConfig struct {
	Emotion string `mapstructure:"emotion" validate:"oneof=friendly excited calm serious empathetic"`
}

// AudioConfig configures microphone capture
type AudioConfig struct {
	// CaptureCommand records raw 16-bit little-endian PCM to stdout.
	CaptureCommand []string      `mapstructure:"capture_command" validate:"min=1"`
	SampleRate     int           `mapstructure:"sample_rate" validate:"gt=0"`
	Channels       int           `mapstructure:"channels" validate:"min=1,max=2"`
	ChunkSize      int           `mapstructure:"chunk_size" validate:"gt=0"`
	MaxRecording   time.Duration `mapstructure:"max_recording" validate:"gt=0"`
}

// PlaybackConfig configures the audio output channel
type PlaybackConfig struct {
	// PlayerCommand plays the file given as its last argument.
	PlayerCommand    []string      `mapstructure:"player_command" validate:"min=1"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" validate:"gt=0"`
	Enabled          bool          `mapstructure:"enabled"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// FeedConfig configures the local event feed server
type FeedConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the feed
}

// MetricsConfig toggles the /metrics endpoint on the feed server
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	logDir := ""
	if dir, err := GetConfigDir(); err == nil {
		logDir = filepath.Join(dir, "logs")
	}

	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 60 * time.Second,
		},
		User: UserConfig{
			Emotion: "friendly",
		},
		Audio: AudioConfig{
			CaptureCommand: []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"},
			SampleRate:     16000,
			Channels:       1,
			ChunkSize:      3200, // 100ms at 16kHz mono 16-bit
			MaxRecording:   2 * time.Minute,
		},
		Playback: PlaybackConfig{
			PlayerCommand:    defaultPlayerCommand(),
			ProgressInterval: 250 * time.Millisecond,
			Enabled:          true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     logDir,
			Console: false,
		},
		Feed: FeedConfig{
			Addr: "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func defaultPlayerCommand() []string {
	if _, err := os.Stat("/usr/bin/afplay"); err == nil {
		return []string{"afplay"}
	}
	return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}
}

var validate = validator.New()

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Loader wraps a viper instance so callers can reload and save
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a viper instance. An explicit path wins over the
// default search locations (~/.daymind and the working directory).
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	forEachKey(cfg, v.SetDefault)
}

// forEachKey flattens cfg into viper keys; durations are written as
// strings so saved files stay human readable
func forEachKey(cfg *Config, set func(key string, value any)) {
	set("api.base_url", cfg.API.BaseURL)
	set("api.timeout", cfg.API.Timeout.String())
	set("user.emotion", cfg.User.Emotion)
	set("audio.capture_command", cfg.Audio.CaptureCommand)
	set("audio.sample_rate", cfg.Audio.SampleRate)
	set("audio.channels", cfg.Audio.Channels)
	set("audio.chunk_size", cfg.Audio.ChunkSize)
	set("audio.max_recording", cfg.Audio.MaxRecording.String())
	set("playback.player_command", cfg.Playback.PlayerCommand)
	set("playback.progress_interval", cfg.Playback.ProgressInterval.String())
	set("playback.enabled", cfg.Playback.Enabled)
	set("logging.level", cfg.Logging.Level)
	set("logging.dir", cfg.Logging.Dir)
	set("logging.console", cfg.Logging.Console)
	set("feed.addr", cfg.Feed.Addr)
	set("metrics.enabled", cfg.Metrics.Enabled)
}

// Load reads the config file (a missing file in the default search
// locations is not an error), applies
// environment overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads the configuration whenever the backing file changes.
// Invalid edits are reported through onError and otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := &Config{}
		if err := l.v.Unmarshal(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if err := cfg.Validate(); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFileUsed returns the file that was read, if any
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load is a shortcut for NewLoader(path).Load()
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration as YAML to path, or to
// ~/.daymind/config.yaml when path is empty
func Save(cfg *Config, path string) error {
	if path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	forEachKey(cfg, v.Set)
	return v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, configDirName), nil
}
