// Package config loads and validates tracker service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Client    ClientConfig    `mapstructure:"client"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int     `mapstructure:"port"`
	RequestTimeoutSeconds  int     `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int     `mapstructure:"shutdown_timeout_seconds"`
	RateLimitRPS           float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst         int     `mapstructure:"rate_limit_burst"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// TrackerConfig governs record retention and the expiry sweeper.
type TrackerConfig struct {
	RetentionSeconds     int `mapstructure:"retention_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProgressConfig tunes the event hub and its optional sinks.
type ProgressConfig struct {
	BufferSize        int  `mapstructure:"buffer_size"`
	BatchMaxEvents    int  `mapstructure:"batch_max_events"`
	BatchMaxWaitMS    int  `mapstructure:"batch_max_wait_ms"`
	SinkTimeoutMS     int  `mapstructure:"sink_timeout_ms"`
	LogEnabled        bool `mapstructure:"log_enabled"`
	HistoryEnabled    bool `mapstructure:"history_enabled"`
	HistoryMaxPerJob  int  `mapstructure:"history_max_per_job"`
	HistoryMaxJobs    int  `mapstructure:"history_max_jobs"`
	HistoryTTLSeconds int  `mapstructure:"history_ttl_seconds"`
	PrometheusEnabled bool `mapstructure:"prometheus_enabled"`
	PublishEnabled    bool `mapstructure:"publish_enabled"`
}

// MetricsConfig toggles the /metrics route.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DatabaseConfig controls access to the optional Postgres history table.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for job outcome notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ClientConfig configures the CLI's polling client.
type ClientConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	Version        string  `mapstructure:"version"`
	ProjectID      string  `mapstructure:"project_id"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("tracker.retention_seconds", 300)
	v.SetDefault("tracker.sweep_interval_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch_max_events", 256)
	v.SetDefault("progress.batch_max_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.history_enabled", true)
	v.SetDefault("progress.history_max_per_job", 1000)
	v.SetDefault("progress.history_max_jobs", 10000)
	v.SetDefault("progress.history_ttl_seconds", 3600)
	v.SetDefault("progress.prometheus_enabled", true)
	v.SetDefault("progress.publish_enabled", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "job_progress_history")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.api_key", "")
	v.SetDefault("client.timeout_seconds", 10)
	v.SetDefault("client.poll_interval_seconds", 2)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "job-progress-tracker")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server.rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if c.Tracker.RetentionSeconds <= 0 {
		return fmt.Errorf("tracker.retention_seconds must be > 0")
	}
	if c.Tracker.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("tracker.sweep_interval_seconds must be > 0")
	}
	if c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Progress.PublishEnabled && c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	if c.Client.PollIntervalSeconds <= 0 {
		return fmt.Errorf("client.poll_interval_seconds must be > 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	return nil
}

// Retention converts tracker.retention_seconds to a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Tracker.RetentionSeconds) * time.Second
}

// SweepInterval converts tracker.sweep_interval_seconds to a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Tracker.SweepIntervalSeconds) * time.Second
}

// RequestTimeout converts server.request_timeout_seconds to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout converts server.shutdown_timeout_seconds to a duration,
// falling back to ten seconds.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
