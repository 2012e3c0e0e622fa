// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/vtxlink/internal/backoff"
	"github.com/tomtom215/vtxlink/internal/resource"
	"github.com/tomtom215/vtxlink/internal/stream"
	"github.com/tomtom215/vtxlink/internal/supervisor"
)

const mebibyte = 1 << 20

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Resources  ResourcesConfig  `koanf:"resources"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
	Streams    []StreamConfig   `koanf:"streams" validate:"dive"`
}

// ServerConfig holds HTTP listener and relay process settings.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// FFmpegBinary is the relay executable, resolved through PATH when not absolute.
	FFmpegBinary string   `koanf:"ffmpeg_binary" validate:"required"`
	GlobalArgs   []string `koanf:"global_args"`

	// HLSRoot is the output area root. A tmpfs such as /dev/shm/vtx-hls
	// keeps segment churn off flash storage.
	HLSRoot string `koanf:"hls_root" validate:"required"`

	// ManifestWait bounds how long a manifest request waits for a freshly
	// activated stream to produce its playlist.
	ManifestWait         time.Duration `koanf:"manifest_wait" validate:"gte=0"`
	ManifestPollInterval time.Duration `koanf:"manifest_poll_interval" validate:"gt=0"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ResourcesConfig holds memory sampling and admission thresholds.
type ResourcesConfig struct {
	SampleInterval     time.Duration `koanf:"sample_interval" validate:"gt=0"`
	PerStreamReserveMB uint64        `koanf:"per_stream_reserve_mb"`
	SafetyMarginMB     uint64        `koanf:"safety_margin_mb"`
}

// SupervisorConfig holds stream lifecycle timings and supervisor tree tuning.
type SupervisorConfig struct {
	// Interval is how often a denied auto-start stream retries admission.
	Interval            time.Duration `koanf:"interval" validate:"gt=0"`
	SpawnTimeout        time.Duration `koanf:"spawn_timeout" validate:"gt=0"`
	OutputCheckInterval time.Duration `koanf:"output_check_interval" validate:"gt=0"`
	StopGracePeriod     time.Duration `koanf:"stop_grace_period" validate:"gt=0"`
	StabilityWindow     time.Duration `koanf:"stability_window" validate:"gt=0"`
	CommandTimeout      time.Duration `koanf:"command_timeout" validate:"gt=0"`
	HistorySize         int           `koanf:"history_size" validate:"min=1,max=65536"`

	// Suture tree parameters; see supervisor.TreeConfig.
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
}

// APIConfig holds management API settings.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StreamConfig is one entry of the streams list.
type StreamConfig struct {
	Name       string   `koanf:"name" validate:"required"`
	Source     string   `koanf:"source" validate:"required"`
	OutputArgs []string `koanf:"output_args" validate:"min=1"`
	AutoStart  bool     `koanf:"auto_start"`

	// IdleTimeout is in seconds; zero keeps the relay running until stopped.
	IdleTimeout int `koanf:"idle_timeout" validate:"gte=0"`

	Retry RetryConfig `koanf:"retry"`
}

// RetryConfig is a stream's crash recovery policy. Times are in seconds.
// MaxBackoffSec of zero leaves the delay uncapped.
type RetryConfig struct {
	MaxAttempts        int     `koanf:"max_attempts" validate:"min=1"`
	InitialBackoffSec  float64 `koanf:"initial_backoff_sec" validate:"gt=0"`
	MaxBackoffSec      float64 `koanf:"max_backoff_sec" validate:"omitempty,gte=0,gtefield=InitialBackoffSec"`
	Jitter             float64 `koanf:"jitter" validate:"gte=0,lte=1"`
	StabilityWindowSec float64 `koanf:"stability_window_sec" validate:"gte=0"`
}

// Policy converts the retry section to a backoff policy.
func (r RetryConfig) Policy() backoff.Policy {
	return backoff.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: seconds(r.InitialBackoffSec),
		MaxBackoff:     seconds(r.MaxBackoffSec),
		Jitter:         r.Jitter,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// StreamConfigs converts the streams list to supervisor configs, in order.
func (c *Config) StreamConfigs() []stream.Config {
	out := make([]stream.Config, len(c.Streams))
	for i, sc := range c.Streams {
		out[i] = stream.Config{
			Name:            sc.Name,
			Source:          sc.Source,
			AutoStart:       sc.AutoStart,
			IdleTimeout:     time.Duration(sc.IdleTimeout) * time.Second,
			OutputArgs:      append([]string(nil), sc.OutputArgs...),
			Retry:           sc.Retry.Policy(),
			StabilityWindow: seconds(sc.Retry.StabilityWindowSec),
		}
	}
	return out
}

// StreamOptions returns the lifecycle settings shared by every stream.
func (c *Config) StreamOptions() stream.Options {
	return stream.Options{
		Executable:             c.Server.FFmpegBinary,
		GlobalArgs:             append([]string{}, c.Server.GlobalArgs...),
		SpawnTimeout:           c.Supervisor.SpawnTimeout,
		OutputCheckInterval:    c.Supervisor.OutputCheckInterval,
		StopGracePeriod:        c.Supervisor.StopGracePeriod,
		StabilityWindow:        c.Supervisor.StabilityWindow,
		AdmissionRetryInterval: c.Supervisor.Interval,
		CommandTimeout:         c.Supervisor.CommandTimeout,
		HistorySize:            c.Supervisor.HistorySize,
	}
}

// GateConfig returns the admission thresholds in bytes.
func (c *Config) GateConfig() resource.GateConfig {
	return resource.GateConfig{
		PerStreamReserve: c.Resources.PerStreamReserveMB * mebibyte,
		SafetyMargin:     c.Resources.SafetyMarginMB * mebibyte,
	}
}

// TreeConfig returns the supervisor tree tuning.
func (c *Config) TreeConfig() supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.Supervisor.FailureThreshold,
		FailureDecay:     c.Supervisor.FailureDecay,
		FailureBackoff:   c.Supervisor.FailureBackoff,
		ShutdownTimeout:  c.Server.ShutdownTimeout,
	}
}
