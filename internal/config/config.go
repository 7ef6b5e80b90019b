// Package config loads mtcmidi configuration using Viper from files,
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmacd/mtcmidi/mtc"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultBufferDepth     = 64
	defaultFullFrameEvery  = 8
	defaultStatusListen    = "127.0.0.1:8765"
	defaultShutdownTimeout = 5 * time.Second
	defaultOSCAddress      = "127.0.0.1:57120"
	defaultOSCPrefix       = "/mtc"
	defaultOSCTempo        = 120.0
	defaultMQTTBroker      = "127.0.0.1:1883"
	defaultMQTTTopic       = "mtcmidi/timecode"
	defaultMQTTTimeout     = 2 * time.Second
)

// EnvPrefix is prepended to every environment variable, e.g.
// MTCMIDI_MIDI_INPUT=IAC.
const EnvPrefix = "MTCMIDI"

// Config holds all configuration for the application.
type Config struct {
	MIDI      MIDIConfig      `mapstructure:"midi"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Status    StatusConfig    `mapstructure:"status"`
	OSC       OSCConfig       `mapstructure:"osc"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// MIDIConfig selects ports.  Names match as substrings.
type MIDIConfig struct {
	Input       string `mapstructure:"input"`
	Output      string `mapstructure:"output"`
	BufferDepth int    `mapstructure:"buffer_depth"`
}

// GeneratorConfig configures the MTC master.
type GeneratorConfig struct {
	Rate           string `mapstructure:"rate"`             // 24, 25, 29.97, 30
	Start          string `mapstructure:"start"`            // HH:MM:SS:FF
	FullFrameEvery int    `mapstructure:"full_frame_every"` // quarter frame cycles between full frames, 0 = only at start
}

// StatusConfig holds the HTTP status endpoint configuration.
type StatusConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OSCConfig holds the OSC fan-out configuration.
type OSCConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Address string  `mapstructure:"address"` // host:port of the receiver
	Prefix  string  `mapstructure:"prefix"`
	Tempo   float64 `mapstructure:"tempo"` // BPM for the beat position argument
}

// MQTTConfig controls publishing decoded timecode to an MQTT broker.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"` // host:port
	ClientID       string        `mapstructure:"client_id"`
	Topic          string        `mapstructure:"topic"`
	QoS            byte          `mapstructure:"qos"`
	Format         string        `mapstructure:"format"` // json, msgpack
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mtcmidi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mtcmidi")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("midi.input", "")
	v.SetDefault("midi.output", "")
	v.SetDefault("midi.buffer_depth", defaultBufferDepth)

	v.SetDefault("generator.rate", "25")
	v.SetDefault("generator.start", "00:00:00:00")
	v.SetDefault("generator.full_frame_every", defaultFullFrameEvery)

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen", defaultStatusListen)
	v.SetDefault("status.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("osc.enabled", false)
	v.SetDefault("osc.address", defaultOSCAddress)
	v.SetDefault("osc.prefix", defaultOSCPrefix)
	v.SetDefault("osc.tempo", defaultOSCTempo)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", defaultMQTTBroker)
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic", defaultMQTTTopic)
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.format", "json")
	v.SetDefault("mqtt.publish_timeout", defaultMQTTTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MIDI.BufferDepth < 1 {
		return fmt.Errorf("midi.buffer_depth must be at least 1")
	}

	if _, err := mtc.ParseRate(c.Generator.Rate); err != nil {
		return fmt.Errorf("generator.rate: %w", err)
	}
	if _, err := c.Generator.StartTimecode(); err != nil {
		return fmt.Errorf("generator.start: %w", err)
	}
	if c.Generator.FullFrameEvery < 0 {
		return fmt.Errorf("generator.full_frame_every must not be negative")
	}

	if c.Status.Enabled && c.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when status is enabled")
	}

	if c.OSC.Enabled && c.OSC.Address == "" {
		return fmt.Errorf("osc.address is required when osc is enabled")
	}
	if c.OSC.Tempo <= 0 {
		return fmt.Errorf("osc.tempo must be positive")
	}
	if !strings.HasPrefix(c.OSC.Prefix, "/") {
		return fmt.Errorf("osc.prefix must start with /")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if f := strings.ToLower(c.MQTT.Format); f != "json" && f != "msgpack" {
			return fmt.Errorf("mqtt.format must be one of: json, msgpack")
		}
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// StartTimecode returns the generator's configured start position.  Unlike
// decoded input, it must be a valid timecode at the configured rate.
func (c *GeneratorConfig) StartTimecode() (mtc.Timecode, error) {
	rate, err := mtc.ParseRate(c.Rate)
	if err != nil {
		return mtc.Timecode{}, err
	}
	tc, err := mtc.ParseTimecode(c.Start, rate)
	if err != nil {
		return mtc.Timecode{}, err
	}
	if !tc.Valid() {
		return mtc.Timecode{}, fmt.Errorf("timecode %s out of range at %s fps", tc, rate)
	}
	return tc, nil
}
