// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/vtxlink/internal/backoff"
	"github.com/tomtom215/vtxlink/internal/resource"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"vtx-link.yaml",
	"config.yaml",
	"config.yml",
	"/etc/vtx-link/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment, if present, before
// environment variables are read.
const DotEnvFile = ".env"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 8080,
			FFmpegBinary:         stream.DefaultExecutable,
			GlobalArgs:           append([]string(nil), stream.DefaultGlobalArgs...),
			HLSRoot:              "./static/hls",
			ManifestWait:         3 * time.Second,
			ManifestPollInterval: 200 * time.Millisecond,
			ReadTimeout:          15 * time.Second,
			WriteTimeout:         30 * time.Second,
			ShutdownTimeout:      10 * time.Second,
		},
		Resources: ResourcesConfig{
			SampleInterval:     resource.DefaultSampleInterval,
			PerStreamReserveMB: 30,
			SafetyMarginMB:     5,
		},
		Supervisor: SupervisorConfig{
			Interval:            stream.DefaultAdmissionRetryInterval,
			SpawnTimeout:        stream.DefaultSpawnTimeout,
			OutputCheckInterval: stream.DefaultOutputCheckInterval,
			StopGracePeriod:     stream.DefaultStopGracePeriod,
			StabilityWindow:     stream.DefaultStabilityWindow,
			CommandTimeout:      stream.DefaultCommandTimeout,
			HistorySize:         stream.DefaultHistorySize,
			FailureThreshold:    5.0,
			FailureDecay:        30.0,
			FailureBackoff:      15 * time.Second,
		},
		API: APIConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// defaultStreamConfig holds the per-entry defaults merged under every
// configured stream.
func defaultStreamConfig() StreamConfig {
	return StreamConfig{
		Retry: RetryConfig{
			MaxAttempts:       backoff.DefaultMaxAttempts,
			InitialBackoffSec: backoff.DefaultInitialBackoff.Seconds(),
			MaxBackoffSec:     backoff.DefaultMaxBackoff.Seconds(),
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// A .env file in the working directory is loaded into the environment first
// when present. Variables already set in the environment win over .env.
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// HTTP_PORT -> server.port
	// PER_STREAM_RESERVE_MB -> resources.per_stream_reserve_mb
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	streams, err := loadStreams(k)
	if err != nil {
		return nil, err
	}
	cfg.Streams = streams

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadStreams decodes each streams entry over the per-entry defaults, so an
// entry that omits its retry section still gets the default policy while an
// explicit value, including a zero, is kept as written for validation.
func loadStreams(k *koanf.Koanf) ([]StreamConfig, error) {
	entries := k.Slices("streams")
	if len(entries) == 0 {
		return nil, nil
	}

	out := make([]StreamConfig, 0, len(entries))
	for i, entry := range entries {
		sk := koanf.New(".")
		defaults := defaultStreamConfig()
		if err := sk.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
			return nil, fmt.Errorf("failed to load stream defaults: %w", err)
		}
		if err := sk.Merge(entry); err != nil {
			return nil, fmt.Errorf("failed to merge streams[%d]: %w", i, err)
		}
		var sc StreamConfig
		if err := sk.Unmarshal("", &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal streams[%d]: %w", i, err)
		}
		// The default cap never undercuts an explicit initial backoff.
		if !entry.Exists("retry.max_backoff_sec") && sc.Retry.MaxBackoffSec < sc.Retry.InitialBackoffSec {
			sc.Retry.MaxBackoffSec = sc.Retry.InitialBackoffSec
		}
		out = append(out, sc)
	}
	return out, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths that should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.global_args",
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":              "server.host",
	"http_port":              "server.port",
	"ffmpeg_binary":          "server.ffmpeg_binary",
	"ffmpeg_global_args":     "server.global_args",
	"hls_root":               "server.hls_root",
	"manifest_wait":          "server.manifest_wait",
	"manifest_poll_interval": "server.manifest_poll_interval",
	"http_read_timeout":      "server.read_timeout",
	"http_write_timeout":     "server.write_timeout",
	"shutdown_timeout":       "server.shutdown_timeout",

	// Resources
	"sample_interval":       "resources.sample_interval",
	"per_stream_reserve_mb": "resources.per_stream_reserve_mb",
	"safety_margin_mb":      "resources.safety_margin_mb",

	// Supervisor
	"supervisor_interval":          "supervisor.interval",
	"spawn_timeout":                "supervisor.spawn_timeout",
	"output_check_interval":        "supervisor.output_check_interval",
	"stop_grace_period":            "supervisor.stop_grace_period",
	"stability_window":             "supervisor.stability_window",
	"command_timeout":              "supervisor.command_timeout",
	"history_size":                 "supervisor.history_size",
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",

	// API
	"cors_origins":        "api.cors_origins",
	"rate_limit_reqs":     "api.rate_limit_reqs",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",
	"rate_limit_disabled": "api.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - HLS_ROOT -> server.hls_root
//   - SUPERVISOR_INTERVAL -> supervisor.interval
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped variables are skipped so unrelated environment never leaks into config.
	return ""
}
