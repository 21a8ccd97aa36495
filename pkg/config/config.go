// Package config loads plotconv settings from a YAML file and PLOTCONV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("convert workers must not be negative")
	ErrInvalidInterval    = errors.New("interval must be positive")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidSampleRatio = errors.New("sample ratio must be between 0 and 1")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidThreshold   = errors.New("throttle threshold must be positive")
)

const envPrefix = "PLOTCONV"

// Config holds all plotconv configuration.
type Config struct {
	Convert    ConvertConfig    `mapstructure:"convert"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ConvertConfig controls the shuffle engine.
type ConvertConfig struct {
	// MemoryBudget is a size such as "512MB" or "2GiB". A bare number is
	// mebibytes. Empty means one scoop-group pair per iteration.
	MemoryBudget string `mapstructure:"memory_budget"`
	Workers      int    `mapstructure:"workers"`
}

// ProgressConfig controls progress output.
type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// CheckpointConfig controls checkpoint persistence.
type CheckpointConfig struct {
	Directory string `mapstructure:"directory"`
	Enabled   bool   `mapstructure:"enabled"`
}

// ThrottleConfig names a process whose disk activity pauses the conversion.
type ThrottleConfig struct {
	Process   string        `mapstructure:"process"`
	Threshold string        `mapstructure:"threshold"`
	Interval  time.Duration `mapstructure:"interval"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry and diagnostics settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
}

// LoadConfig loads configuration from configPath, or from config.yaml in
// the default search path when configPath is empty, then applies
// environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.plotconv")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("convert.memory_budget", DefaultMemoryBudget)
	viperCfg.SetDefault("convert.workers", DefaultWorkers)

	viperCfg.SetDefault("progress.interval", DefaultProgressInterval)

	viperCfg.SetDefault("checkpoint.enabled", DefaultCheckpointEnabled)
	viperCfg.SetDefault("checkpoint.directory", DefaultCheckpointDirectory)

	viperCfg.SetDefault("throttle.process", DefaultThrottleProcess)
	viperCfg.SetDefault("throttle.threshold", DefaultThrottleThreshold)
	viperCfg.SetDefault("throttle.interval", DefaultThrottleInterval)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultMetricsAddr)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.debug_trace", false)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Convert.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Convert.Workers)
	}

	_, err := ParseMemoryBudget(config.Convert.MemoryBudget)
	if err != nil {
		return fmt.Errorf("convert.memory_budget: %w", err)
	}

	if config.Progress.Interval <= 0 {
		return fmt.Errorf("progress.interval: %w: %s", ErrInvalidInterval, config.Progress.Interval)
	}

	if config.Throttle.Interval <= 0 {
		return fmt.Errorf("throttle.interval: %w: %s", ErrInvalidInterval, config.Throttle.Interval)
	}

	if config.Throttle.Process != "" {
		_, err = ParseThreshold(config.Throttle.Threshold)
	} else {
		_, err = ParseRate(config.Throttle.Threshold)
	}

	if err != nil {
		return fmt.Errorf("throttle.threshold: %w", err)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	return nil
}
