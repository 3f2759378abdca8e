// Package fetcher retrieves product HTML from an Amazon storefront. Every
// variant reports through the same Outcome type and never panics or returns
// a bare error to the caller.
package fetcher

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/amazonlight/internal/config"
	"github.com/maltedev/amazonlight/internal/metrics"
	"github.com/maltedev/amazonlight/internal/models"
)

// Source names used in outcomes, metrics and the Registry.
const (
	SourcePage     = "page"
	SourceWidget   = "widget"
	SourceDelegate = "delegate"
)

type Fetcher interface {
	Fetch(ctx context.Context, req models.FetchRequest) Outcome
}

// Options configures the retry loop and request headers.
type Options struct {
	MaxAttempts       int
	BackoffUnit       time.Duration
	WarmUp            bool
	UserAgent         string
	AcceptLanguage    string
	AntiBotIndicators []string
	Throttle          Throttle
	Sleep             SleepFunc
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		BackoffUnit:       time.Second,
		WarmUp:            true,
		UserAgent:         config.DefaultUserAgent,
		AcceptLanguage:    "en-US,en;q=0.9",
		AntiBotIndicators: config.DefaultAntiBotIndicators(),
		Logger:            slog.Default(),
	}
}

// OptionsFromConfig maps the env configuration onto Options.
func OptionsFromConfig(cfg config.FetcherConfig) Options {
	opts := DefaultOptions()
	opts.MaxAttempts = cfg.MaxAttempts
	opts.BackoffUnit = cfg.BackoffUnit
	opts.WarmUp = cfg.WarmUp
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	if len(cfg.AntiBotIndicators) > 0 {
		opts.AntiBotIndicators = cfg.AntiBotIndicators
	}
	return opts
}

// Registry holds the fetchers available for selection and delegation.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

func (r *Registry) Register(name string, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[name] = f
}

func (r *Registry) Lookup(name string) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[name]
	return f, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
