package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ErrNotFound is returned by a Source that has no value for a key.
var ErrNotFound = errors.New("setting not found")

// Source is one place settings can come from.
type Source interface {
	Lookup(ctx context.Context, key string) (string, error)
}

// Resolver asks its sources in order and returns the first non-empty value.
// It lets the directive parser read its own settings first and a sibling
// plugin's settings second without knowing where either lives.
type Resolver struct {
	sources []Source
	logger  *slog.Logger
}

func NewResolver(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		sources: sources,
		logger:  logger.With("component", "config_resolver"),
	}
}

// Lookup returns the first non-empty value any source has for key. An empty
// value counts as unset, so the next source is asked.
func (r *Resolver) Lookup(ctx context.Context, key string) (string, bool) {
	for i, src := range r.sources {
		value, err := src.Lookup(ctx, key)
		if err == nil {
			if strings.TrimSpace(value) == "" {
				continue
			}
			return value, true
		}
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("settings source failed, trying next", "key", key, "source", i, "error", err)
		}
	}
	return "", false
}

func (r *Resolver) String(ctx context.Context, key, defaultValue string) string {
	if value, ok := r.Lookup(ctx, key); ok {
		return value
	}
	return defaultValue
}

func (r *Resolver) Int(ctx context.Context, key string, defaultValue int) int {
	if value, ok := r.Lookup(ctx, key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
		r.logger.Warn("ignoring non-numeric setting", "key", key, "value", value)
	}
	return defaultValue
}

func (r *Resolver) Bool(ctx context.Context, key string, defaultValue bool) bool {
	if value, ok := r.Lookup(ctx, key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
		r.logger.Warn("ignoring non-boolean setting", "key", key, "value", value)
	}
	return defaultValue
}

// EnvSource reads settings from environment variables named Prefix+UPPER(key).
type EnvSource struct {
	Prefix string
	lookup func(string) (string, bool)
}

func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{Prefix: prefix, lookup: os.LookupEnv}
}

func (s *EnvSource) Lookup(_ context.Context, key string) (string, error) {
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(s.Prefix + strings.ToUpper(key)); ok {
		return value, nil
	}
	return "", ErrNotFound
}

// MapSource serves settings from memory.
type MapSource map[string]string

func (m MapSource) Lookup(_ context.Context, key string) (string, error) {
	if value, ok := m[key]; ok {
		return value, nil
	}
	return "", ErrNotFound
}
