// Package app wires the gateway subsystems into a running HTTP server.
//
// The App struct owns the full lifecycle: New connects the backends to the
// upload handler, Run serves until the context ends, and Shutdown drains
// in-flight uploads before closing the backends.
//
// For testing, inject doubles through [Backends] and the functional options
// (WithAuthenticator, WithMetrics, ...). When an option is not provided, New
// creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/nmspgate/internal/auth"
	"github.com/MrWong99/nmspgate/internal/config"
	"github.com/MrWong99/nmspgate/internal/gateway"
	"github.com/MrWong99/nmspgate/internal/health"
	"github.com/MrWong99/nmspgate/internal/observe"
	"github.com/MrWong99/nmspgate/internal/resilience"
	"github.com/MrWong99/nmspgate/internal/transcribe"
	"github.com/MrWong99/nmspgate/pkg/artifact"
	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// readHeaderTimeout bounds how long a client may take to send its headers.
const readHeaderTimeout = 10 * time.Second

// Backends holds the pluggable parts of the pipeline. Recognizer and Decoders
// are required; a nil Store disables debug uploads. Populated by main via the
// config registry.
type Backends struct {
	Recognizer asr.Provider
	Decoders   codec.Factory
	Store      artifact.Store
}

// App owns all subsystem lifetimes of one gateway process.
type App struct {
	cfg      *config.Config
	backends *Backends

	// Injected or built in New.
	authn    gateway.Authenticator
	pinger   func(context.Context) error
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	level    *slog.LevelVar

	handler http.Handler
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAuthenticator replaces the account service client.
func WithAuthenticator(a gateway.Authenticator) Option {
	return func(app *App) { app.authn = a }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// WithGatherer sets the Prometheus registry served on the metrics path.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(app *App) { app.gatherer = g }
}

// WithLevelVar lets config reloads change the log level at runtime.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(app *App) { app.level = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring the backends, the account service, health
// probes and metrics behind one HTTP server. It does not start listening.
func New(ctx context.Context, cfg *config.Config, backends *Backends, opts ...Option) (*App, error) {
	if backends == nil || backends.Recognizer == nil || backends.Decoders == nil {
		return nil, errors.New("app: recognizer and decoders are required")
	}

	a := &App{
		cfg:      cfg,
		backends: backends,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}
	a.closers = append(a.closers, backends.Recognizer.Close)

	// ── 1. Account service ───────────────────────────────────────────────
	a.initAuth()

	// ── 2. Debug store ───────────────────────────────────────────────────
	store := a.initStore()

	// ── 3. Upload handler ────────────────────────────────────────────────
	upload, err := gateway.New(gateway.Config{
		Auth:     a.authn,
		Decoders: backends.Decoders,
		Transcriber: transcribe.New(backends.Recognizer,
			transcribe.WithRetry(cfg.Recognizer.Retry.MaxAttempts, cfg.Recognizer.Retry.Delay),
			transcribe.WithTimeout(cfg.Recognizer.Timeout),
			transcribe.WithMetrics(a.metrics),
			transcribe.WithName(cfg.Recognizer.Name),
		),
		Store:     store,
		StoreName: cfg.DebugStore.Name,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	// ── 4. Routes ────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	upload.Register(mux, cfg.Server.ServletPath)
	health.New(a.checkers(store)...).Register(mux)
	mux.Handle("GET "+cfg.Telemetry.MetricsPath, promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	a.handler = observe.Middleware(a.metrics,
		"/healthz", "/readyz", "/heartbeat", cfg.Telemetry.MetricsPath,
	)(mux)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	slog.Info("gateway configured",
		"servlet_path", cfg.Server.ServletPath,
		"recognizer", cfg.Recognizer.Name,
		"codec", cfg.Codec.Name,
		"debug_store", cfg.DebugStore.Name,
		"require_subscription", cfg.Auth.SubscriptionRequired(),
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initAuth builds the account service gate unless one was injected.
func (a *App) initAuth() {
	if a.authn != nil {
		return
	}
	client := auth.NewClient(a.cfg.Auth.BaseURL, auth.WithTimeout(a.cfg.Auth.Timeout))
	a.authn = auth.NewGate(client, a.cfg.Auth.SubscriptionRequired())
	a.pinger = client.Ping
}

// initStore wraps the debug store in a circuit breaker. It returns nil when
// no store is configured.
func (a *App) initStore() artifact.Store {
	s := a.backends.Store
	if s == nil {
		return nil
	}
	a.closers = append(a.closers, s.Close)

	cb := a.cfg.DebugStore.CircuitBreaker
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "debug_store",
		MaxFailures: cb.MaxFailures,
		Cooldown:    cb.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})
	return artifact.Guard(s, breaker)
}

// checkers returns the readiness checks for the configured dependencies.
func (a *App) checkers(store artifact.Store) []health.Checker {
	var cs []health.Checker
	if a.pinger != nil {
		cs = append(cs, health.Checker{Name: "auth", Check: a.pinger})
	}
	if store != nil {
		cs = append(cs, health.Checker{Name: "debug_store", Check: store.Ping})
	}
	return cs
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler, including middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled, then shuts the server down within
// server.shutdown_timeout. It returns nil after a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// OnConfigChange applies a reloaded config. Only the log level changes at
// runtime; anything else is reported as needing a restart.
func (a *App) OnConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "fields", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting uploads, waits for in-flight ones and closes the
// backends. If ctx expires first, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
