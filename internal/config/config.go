// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Exposure   ExposureConfig   `mapstructure:"exposure" yaml:"exposure"`
	Journal    JournalConfig    `mapstructure:"journal" yaml:"journal"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NavigationConfig tunes path computation and the navigator's waits.
type NavigationConfig struct {
	// MaxDepth bounds path length in hops; defends against misconfigured graphs.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
	// StepEstimate is the fixed per-hop latency used for duration estimates.
	StepEstimate time.Duration `mapstructure:"step_estimate" yaml:"step_estimate"`
	// ReadinessTimeout bounds each wait for a control to become interactable.
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout" yaml:"readiness_timeout"`
	// TransitionTimeout bounds each wait for a context change to take effect.
	TransitionTimeout time.Duration `mapstructure:"transition_timeout" yaml:"transition_timeout"`
}

// ExposureConfig tunes the live observation probes.
type ExposureConfig struct {
	// SampleInterval is the pacing of the browser probe's observation loop.
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
	// ObstructionThreshold is the minimum unobstructed fraction for a visible
	// control to count as exposed.
	ObstructionThreshold float64 `mapstructure:"obstruction_threshold" yaml:"obstruction_threshold"`
}

// JournalConfig configures the optional Postgres event journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfinder")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Navigation --
	v.SetDefault("navigation.max_depth", 10)
	v.SetDefault("navigation.step_estimate", 500*time.Millisecond)
	v.SetDefault("navigation.readiness_timeout", "10s")
	v.SetDefault("navigation.transition_timeout", "10s")

	// -- Exposure --
	v.SetDefault("exposure.sample_interval", "250ms")
	v.SetDefault("exposure.obstruction_threshold", 0.5)

	// -- Journal --
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.url", "")
}

// Validate rejects configurations that would make the navigator misbehave.
func (c *Config) Validate() error {
	if c.Navigation.MaxDepth < 1 {
		return fmt.Errorf("navigation.max_depth must be at least 1, got %d", c.Navigation.MaxDepth)
	}
	if c.Navigation.StepEstimate < 0 {
		return fmt.Errorf("navigation.step_estimate must not be negative")
	}
	if c.Exposure.ObstructionThreshold < 0 || c.Exposure.ObstructionThreshold > 1 {
		return fmt.Errorf("exposure.obstruction_threshold must be within [0, 1], got %f", c.Exposure.ObstructionThreshold)
	}
	if c.Journal.Enabled && c.Journal.URL == "" {
		return fmt.Errorf("journal.url is required when the journal is enabled")
	}
	return nil
}
