// Package app assembles the rendering pipeline from configuration. Both the
// HTTP service and the CLI build through New.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/maltedev/amazonlight/internal/api"
	"github.com/maltedev/amazonlight/internal/browser"
	"github.com/maltedev/amazonlight/internal/config"
	"github.com/maltedev/amazonlight/internal/database"
	"github.com/maltedev/amazonlight/internal/fetcher"
	"github.com/maltedev/amazonlight/internal/metrics"
	"github.com/maltedev/amazonlight/internal/pipeline"
	"github.com/maltedev/amazonlight/internal/ratelimit"
	"github.com/maltedev/amazonlight/internal/render"
	"github.com/maltedev/amazonlight/internal/report"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	Registry *fetcher.Registry
	Checks   map[string]api.HealthCheck
	Source   string

	closers []func() error
	logger  *slog.Logger
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New connects the optional settings database and failure stream, creates
// the transport and registers every fetcher variant.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Metrics: metrics.New(),
		Checks:  make(map[string]api.HealthCheck),
		Source:  cfg.Fetcher.Source,
		logger:  logger,
	}

	sources := []config.Source{config.NewEnvSource("AMAZON_")}
	if cfg.Database.Enabled() {
		store, err := a.connectSettings(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		sources = append(sources, store)
	}
	resolver := config.NewResolver(logger, sources...)

	sessions, err := a.sessions(cfg.Fetcher)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := fetcher.OptionsFromConfig(cfg.Fetcher)
	opts.Metrics = a.Metrics
	opts.Logger = logger
	if cfg.Fetcher.RateLimitMax > 0 {
		throttle := ratelimit.NewAdaptiveRateLimiter(cfg.Fetcher.RateLimitMin, cfg.Fetcher.RateLimitMax)
		a.Metrics.RegisterThrottle(throttle.Delays)
		opts.Throttle = throttle
	}

	partner := func(ctx context.Context, country string) string {
		return resolver.String(ctx, "partner_"+country, "")
	}

	a.Registry = fetcher.NewRegistry()
	a.Registry.Register(fetcher.SourcePage, fetcher.NewPageFetcher(sessions, opts))
	a.Registry.Register(fetcher.SourceWidget, fetcher.NewWidgetFetcher(sessions, partner, opts))
	a.Registry.Register(fetcher.SourceDelegate, fetcher.NewDelegatingFetcher(cfg.Fetcher.Delegate, a.Registry, logger))

	selected, ok := a.Registry.Lookup(cfg.Fetcher.Source)
	if !ok {
		a.Close()
		return nil, fmt.Errorf("unknown fetcher source %q", cfg.Fetcher.Source)
	}

	reporters := report.Multi{report.NewLogReporter(logger)}
	if cfg.Redis.Enabled() {
		stream, err := a.connectStream(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		reporters = append(reporters, stream)
	}

	a.Pipeline = pipeline.New(pipeline.Options{
		Settings: resolver,
		Fetcher:  selected,
		Renderer: render.NewRenderer(render.Options{
			LinkTarget: cfg.Widget.LinkTarget,
			Images:     render.ImagesFor(cfg.Widget.ImageProxy),
		}),
		Reporter: reporters,
		Metrics:  a.Metrics,
		Logger:   logger,
	})

	logger.Info("pipeline ready",
		"source", cfg.Fetcher.Source,
		"transport", cfg.Fetcher.Transport,
		"fetchers", a.Registry.Names(),
		"settings_db", cfg.Database.Enabled(),
		"failure_stream", cfg.Redis.Enabled())

	return a, nil
}

func (a *App) connectSettings(ctx context.Context, cfg config.DatabaseConfig) (*database.SettingsStore, error) {
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to settings database: %w", err)
	}
	a.closers = append(a.closers, func() error { db.Close(); return nil })
	a.Checks["postgres"] = db.Ping

	store := database.NewSettingsStore(db, cfg.SettingsPlugin)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *App) connectStream(ctx context.Context, cfg config.RedisConfig) (*report.StreamReporter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	stream := report.NewStreamReporter(client, cfg.Stream, a.logger)
	a.closers = append(a.closers, stream.Close)
	a.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return stream, nil
}

func (a *App) sessions(cfg config.FetcherConfig) (fetcher.Sessions, error) {
	if cfg.Transport == "browser" {
		b, err := browser.New(browser.OptionsFromConfig(cfg), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	}
	return &fetcher.HTTPSessions{Timeout: cfg.Timeout}, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
