package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/MrWong99/nmspgate/internal/app"
	"github.com/MrWong99/nmspgate/internal/config"
	"github.com/MrWong99/nmspgate/internal/observe"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the gateway until SIGINT or SIGTERM.

Settings are read from --config when given, then overridden by AUTH_URL,
SPEECH_PROJECT, SPEECH_REGION, SPEECH_API_KEY, ASR_AUDIO_BUCKET and
ASR_DEBUG_POSTGRES_DSN. Changes to the file's log level apply without a
restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
}

func serve(ctx context.Context) error {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("nmspgate starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Registerer:     registry,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backends ──────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	backends, err := buildBackends(ctx, cfg, reg)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, backends,
		app.WithGatherer(registry),
		app.WithLevelVar(&level),
	)
	if err != nil {
		return err
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if configPath != "" {
		w, err := config.NewWatcher(configPath, application.OnConfigChange)
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	slog.Info("goodbye")
	return nil
}

// loadConfig reads path, or only the environment when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}
