package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidNames lists known backend names per kind.
// Used by [Validate] to warn about unrecognised names.
var ValidNames = map[string][]string{
	"recognizer":  {RecognizerGoogleV2, RecognizerGoogleV1},
	"codec":       {CodecSpeex, CodecOpus, CodecPassthrough},
	"debug_store": {StoreS3, StorePostgres},
}

// Environment variables that override the file.
const (
	EnvAuthURL       = "AUTH_URL"
	EnvSpeechProject = "SPEECH_PROJECT"
	EnvSpeechRegion  = "SPEECH_REGION"
	EnvSpeechAPIKey  = "SPEECH_API_KEY"
	EnvAudioBucket   = "ASR_AUDIO_BUCKET"
	EnvDebugPostgres = "ASR_DEBUG_POSTGRES_DSN"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultAuthURL    = "https://auth.rebble.io"
	DefaultServlet    = "/NmspServlet/"
	DefaultListenAddr = ":8080"
)

// LookupEnv reads one environment variable. [os.LookupEnv] satisfies it.
type LookupEnv func(key string) (string, bool)

// Load reads the YAML configuration file at path, applies the environment
// and defaults, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies the process
// environment and defaults, and validates the result. An empty document is
// a valid config.
func LoadFromReader(r io.Reader) (*Config, error) {
	return Parse(r, os.LookupEnv)
}

// FromEnv builds a config from the environment and defaults alone, for
// deployments without a config file.
func FromEnv() (*Config, error) {
	return Parse(strings.NewReader(""), os.LookupEnv)
}

// Parse is [LoadFromReader] with an explicit environment.
func Parse(r io.Reader, env LookupEnv) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, env)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the environment variables that are
// set. A debug bucket or DSN from the environment also selects its store
// when none is named.
func ApplyEnv(cfg *Config, env LookupEnv) {
	set := func(dst *string, key string) {
		if v, ok := env(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Auth.BaseURL, EnvAuthURL)
	set(&cfg.Recognizer.Project, EnvSpeechProject)
	set(&cfg.Recognizer.Region, EnvSpeechRegion)
	set(&cfg.Recognizer.APIKey, EnvSpeechAPIKey)
	set(&cfg.DebugStore.Bucket, EnvAudioBucket)
	set(&cfg.DebugStore.PostgresDSN, EnvDebugPostgres)

	if cfg.DebugStore.Name == "" {
		switch {
		case cfg.DebugStore.Bucket != "":
			cfg.DebugStore.Name = StoreS3
		case cfg.DebugStore.PostgresDSN != "":
			cfg.DebugStore.Name = StorePostgres
		}
	}
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	defDur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}

	def(&cfg.Server.ListenAddr, DefaultListenAddr)
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	def(&cfg.Server.ServletPath, DefaultServlet)
	defDur(&cfg.Server.ShutdownTimeout, 15*time.Second)

	def(&cfg.Auth.BaseURL, DefaultAuthURL)
	defDur(&cfg.Auth.Timeout, 5*time.Second)
	if cfg.Auth.RequireSubscription == nil {
		require := true
		cfg.Auth.RequireSubscription = &require
	}

	def(&cfg.Recognizer.Name, RecognizerGoogleV2)
	def(&cfg.Recognizer.Region, "global")
	def(&cfg.Recognizer.LegacyModel, "latest_short")
	defDur(&cfg.Recognizer.Timeout, 10*time.Second)
	if cfg.Recognizer.Retry.MaxAttempts == 0 {
		cfg.Recognizer.Retry.MaxAttempts = 3
	}
	defDur(&cfg.Recognizer.Retry.Delay, time.Second)

	def(&cfg.Codec.Name, CodecSpeex)

	if cfg.DebugStore.CircuitBreaker.MaxFailures == 0 {
		cfg.DebugStore.CircuitBreaker.MaxFailures = 5
	}
	defDur(&cfg.DebugStore.CircuitBreaker.ResetTimeout, 30*time.Second)

	def(&cfg.Telemetry.ServiceName, "nmspgate")
	def(&cfg.Telemetry.MetricsPath, "/metrics")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !strings.HasPrefix(cfg.Server.ServletPath, "/") {
		errs = append(errs, fmt.Errorf("server.servlet_path %q must start with /", cfg.Server.ServletPath))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires cert_file and key_file"))
	}

	// Auth
	if !strings.HasPrefix(cfg.Auth.BaseURL, "http://") && !strings.HasPrefix(cfg.Auth.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("auth.base_url %q must be an http(s) URL", cfg.Auth.BaseURL))
	}
	if cfg.Auth.Timeout < 0 {
		errs = append(errs, errors.New("auth.timeout must not be negative"))
	}

	// Unknown names only warn: the registry may know them.
	validateName("recognizer", cfg.Recognizer.Name)
	validateName("codec", cfg.Codec.Name)
	validateName("debug_store", cfg.DebugStore.Name)

	// Recognizer
	rec := cfg.Recognizer
	if rec.Name == RecognizerGoogleV2 && rec.Project == "" {
		errs = append(errs, fmt.Errorf("recognizer.project is required for %s (env %s)", RecognizerGoogleV2, EnvSpeechProject))
	}
	if rec.Timeout <= 0 {
		errs = append(errs, errors.New("recognizer.timeout must be positive"))
	}
	if rec.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("recognizer.retry.max_attempts %d must be at least 1", rec.Retry.MaxAttempts))
	}
	if rec.Retry.Delay < 0 {
		errs = append(errs, errors.New("recognizer.retry.delay must not be negative"))
	}
	if rec.Retry.MaxAttempts > 1 && rec.Timeout > 0 && rec.Retry.Delay >= rec.Timeout {
		slog.Warn("recognizer.retry.delay is not shorter than recognizer.timeout",
			"delay", rec.Retry.Delay,
			"timeout", rec.Timeout,
		)
	}

	// Codec ↔ recognizer
	if cfg.Codec.Name == CodecPassthrough && rec.Name == RecognizerGoogleV2 {
		errs = append(errs, fmt.Errorf("codec %q sends undecoded speex, which %s does not accept; use %s", CodecPassthrough, RecognizerGoogleV2, RecognizerGoogleV1))
	}

	// Debug store
	ds := cfg.DebugStore
	switch ds.Name {
	case StoreS3:
		if ds.Bucket == "" {
			errs = append(errs, fmt.Errorf("debug_store.bucket is required for s3 (env %s)", EnvAudioBucket))
		}
		if (ds.AccessKeyID == "") != (ds.SecretAccessKey == "") {
			errs = append(errs, errors.New("debug_store.access_key_id and secret_access_key must be set together"))
		}
	case StorePostgres:
		if ds.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("debug_store.postgres_dsn is required for postgres (env %s)", EnvDebugPostgres))
		}
	}
	if ds.CircuitBreaker.MaxFailures < 0 || ds.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("debug_store.circuit_breaker values must not be negative"))
	}

	// Telemetry
	mp := cfg.Telemetry.MetricsPath
	if !strings.HasPrefix(mp, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", mp))
	}
	if slices.Contains([]string{cfg.Server.ServletPath, "/heartbeat", "/healthz", "/readyz"}, mp) {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q collides with another route", mp))
	}

	return errors.Join(errs...)
}

// validateName logs a warning if name is non-empty and not found in the
// [ValidNames] list for the given kind.
func validateName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
