// Package config loads coedit settings from YAML with environment
// overrides.
//
// Durations are written as Go duration strings ("2s", "800ms"). Unknown keys
// are rejected so typos do not silently fall back to defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/presence"
)

// Environment variables that override file settings.
const (
	EnvDB       = "COEDIT_DB"
	EnvLogLevel = "COEDIT_LOG_LEVEL"
)

// Config is the full settings tree.
type Config struct {
	Presence  PresenceConfig  `mapstructure:"presence"`
	Awareness AwarenessConfig `mapstructure:"awareness"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
}

// PresenceConfig tunes the presence protocol's visual pulses.
type PresenceConfig struct {
	// ChangedPulse is how long a change pulse stays raised.
	ChangedPulse time.Duration `mapstructure:"changed_pulse"`
	// EditingPulse is the period of the editing marker pulse.
	EditingPulse time.Duration `mapstructure:"editing_pulse"`
}

// AwarenessConfig tunes the awareness map.
type AwarenessConfig struct {
	// OutdatedTimeout is how long a peer may stay silent before it is
	// swept.
	OutdatedTimeout time.Duration `mapstructure:"outdated_timeout"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	// Path is the database file, overridden by COEDIT_DB.
	Path string `mapstructure:"path"`
}

// LogConfig sets up the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn or error, overridden by
	// COEDIT_LOG_LEVEL.
	Level string `mapstructure:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Presence: PresenceConfig{
			ChangedPulse: presence.ChangedPulseDuration,
			EditingPulse: presence.EditingPulseInterval,
		},
		Awareness: AwarenessConfig{
			OutdatedTimeout: awareness.OutdatedTimeout,
		},
		Store: StoreConfig{Path: "coedit.db"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      c,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Presence.ChangedPulse <= 0 {
		return fmt.Errorf("presence.changed_pulse must be positive, got %s", c.Presence.ChangedPulse)
	}
	if c.Presence.EditingPulse < 0 {
		return fmt.Errorf("presence.editing_pulse must not be negative, got %s", c.Presence.EditingPulse)
	}
	if c.Awareness.OutdatedTimeout <= 0 {
		return fmt.Errorf("awareness.outdated_timeout must be positive, got %s", c.Awareness.OutdatedTimeout)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps log.level to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// PresenceOptions converts the presence section.
func (c *Config) PresenceOptions() []presence.Option {
	return []presence.Option{
		presence.WithChangedPulse(c.Presence.ChangedPulse),
		presence.WithEditingPulse(c.Presence.EditingPulse),
	}
}

// AwarenessOptions converts the awareness section.
func (c *Config) AwarenessOptions() []awareness.Option {
	return []awareness.Option{
		awareness.WithTimeout(c.Awareness.OutdatedTimeout),
	}
}
