// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Hardware panel types.
const (
	HardwareNone = "none"
	HardwareGPIO = "gpio"
)

// Config represents the application configuration.
type Config struct {
	Library  LibraryConfig  `yaml:"library"`
	Playback PlaybackConfig `yaml:"playback"`
	Audio    AudioConfig    `yaml:"audio"`
	Server   ServerConfig   `yaml:"server"`
	Console  ConsoleConfig  `yaml:"console"`
	Hardware HardwareConfig `yaml:"hardware"`
	Log      LogConfig      `yaml:"log"`
}

// LibraryConfig represents the track catalog source.
type LibraryConfig struct {
	Dir        string   `yaml:"dir" default:"./music" validate:"required"`
	Extensions []string `yaml:"extensions" default:"[\".wav\",\".mp3\"]" validate:"min=1,dive,startswith=."`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	DefaultVolume    *int `yaml:"default_volume" default:"50" validate:"omitempty,gte=0,lte=100"`
	PollIntervalMs   int  `yaml:"poll_interval_ms" default:"500" validate:"gte=10,lte=10000"`
	BusyQueryRetries int  `yaml:"busy_query_retries" default:"1" validate:"gte=1,lte=10"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 32000 44100 48000 96000"`
	BufferMs   int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Enabled *bool       `yaml:"enabled" default:"true"`
	Addr    string      `yaml:"addr" default:":5000"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ConsoleConfig represents the local text console.
type ConsoleConfig struct {
	Enabled *bool  `yaml:"enabled" default:"true"`
	Prompt  string `yaml:"prompt" default:"> "`
}

// HardwareConfig selects the button/indicator panel. Settings are decoded by
// the panel factory for the selected type.
type HardwareConfig struct {
	Type     string         `yaml:"type" default:"none" validate:"oneof=none gpio"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LogConfig represents log file rotation.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28" validate:"gte=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies environment
// overrides and defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PIBOX_MUSIC_DIR"); v != "" {
		c.Library.Dir = v
	}
	if v := os.Getenv("PIBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PIBOX_HARDWARE"); v != "" {
		c.Hardware.Type = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// DefaultVolume returns the startup volume. An explicit 0 starts muted.
func (c *Config) DefaultVolume() int {
	if c.Playback.DefaultVolume == nil {
		return 50
	}
	return *c.Playback.DefaultVolume
}

// PollInterval returns the watchdog poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Playback.PollIntervalMs) * time.Millisecond
}

// BufferDuration returns the audio output buffer length.
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// ServerEnabled reports whether the network surface should be served.
func (c *Config) ServerEnabled() bool {
	return c.Server.Enabled == nil || *c.Server.Enabled
}

// ConsoleEnabled reports whether the text console should be read.
func (c *Config) ConsoleEnabled() bool {
	return c.Console.Enabled == nil || *c.Console.Enabled
}
