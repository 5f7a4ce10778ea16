// Package config provides the configuration schema, loader, hot-reload
// watcher and backend registry of the NMSP gateway.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Recognizer names.
const (
	RecognizerGoogleV2 = "google-v2"
	RecognizerGoogleV1 = "google-v1"
)

// Codec names.
const (
	CodecOpus        = "opus"
	CodecSpeex       = "speex"
	CodecPassthrough = "passthrough"
)

// Debug store names. An empty name disables debug uploads.
const (
	StoreS3       = "s3"
	StorePostgres = "postgres"
)

// Config is the root configuration structure.
// It is typically loaded with [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Codec      CodecConfig      `yaml:"codec"`
	DebugStore DebugStoreConfig `yaml:"debug_store"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// ServletPath is where uploads are posted. Default "/NmspServlet/".
	ServletPath string `yaml:"servlet_path"`

	// ShutdownTimeout bounds graceful shutdown. Default 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig points at the account service.
type AuthConfig struct {
	// BaseURL of the account service. Env: AUTH_URL.
	BaseURL string `yaml:"base_url"`

	// Timeout of one account lookup. Default 5s.
	Timeout time.Duration `yaml:"timeout"`

	// RequireSubscription rejects accounts without a subscription with 402.
	// Default true.
	RequireSubscription *bool `yaml:"require_subscription"`
}

// SubscriptionRequired reports the effective subscription policy.
func (a AuthConfig) SubscriptionRequired() bool {
	return a.RequireSubscription == nil || *a.RequireSubscription
}

// RecognizerConfig selects and configures the speech backend.
type RecognizerConfig struct {
	// Name selects the registered backend. Default "google-v2".
	Name string `yaml:"name"`

	// Project is the cloud project id. Required by google-v2.
	// Env: SPEECH_PROJECT.
	Project string `yaml:"project"`

	// Region of the recognizer. Default "global". Env: SPEECH_REGION.
	Region string `yaml:"region"`

	// APIKey authenticates with a key instead of application default
	// credentials. Env: SPEECH_API_KEY.
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the backend address.
	Endpoint string `yaml:"endpoint"`

	// LegacyModel is the model used by google-v1. Default "latest_short".
	LegacyModel string `yaml:"legacy_model"`

	// Timeout of a single attempt. Default 10s.
	Timeout time.Duration `yaml:"timeout"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of unavailable backends.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default 3.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay between attempts. Default 1s.
	Delay time.Duration `yaml:"delay"`
}

// CodecConfig selects the decoder for audio subframes.
type CodecConfig struct {
	// Name is "speex", "opus" or "passthrough". Default "speex".
	Name string `yaml:"name"`
}

// DebugStoreConfig configures where debug copies of uploads go.
type DebugStoreConfig struct {
	// Name is "", "s3" or "postgres". Setting ASR_AUDIO_BUCKET or
	// ASR_DEBUG_POSTGRES_DSN selects the matching store when Name is empty.
	Name string `yaml:"name"`

	// Bucket for s3. Env: ASR_AUDIO_BUCKET.
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// PostgresDSN for postgres. Env: ASR_DEBUG_POSTGRES_DSN.
	PostgresDSN string `yaml:"postgres_dsn"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker around the debug store.
type CircuitBreakerConfig struct {
	// MaxFailures opens the breaker. Default 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open. Default 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is the OpenTelemetry service name. Default "nmspgate".
	ServiceName string `yaml:"service_name"`

	// MetricsPath serves Prometheus metrics. Default "/metrics".
	MetricsPath string `yaml:"metrics_path"`
}
