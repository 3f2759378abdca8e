package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "page", cfg.Fetcher.Source)
	assert.Equal(t, "http", cfg.Fetcher.Transport)
	assert.Equal(t, 3, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetcher.BackoffUnit)
	assert.True(t, cfg.Fetcher.WarmUp)
	assert.NotEmpty(t, cfg.Fetcher.AntiBotIndicators)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AMAZON_SOURCE", "widget")
	t.Setenv("AMAZON_MAX_ATTEMPTS", "5")
	t.Setenv("AMAZON_BACKOFF_UNIT", "250ms")
	t.Setenv("AMAZON_WARMUP", "false")
	t.Setenv("AMAZON_ANTIBOT_INDICATORS", "captcha, robot ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "widget", cfg.Fetcher.Source)
	assert.Equal(t, 5, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetcher.BackoffUnit)
	assert.False(t, cfg.Fetcher.WarmUp)
	assert.Equal(t, []string{"captcha", "robot"}, cfg.Fetcher.AntiBotIndicators)
	assert.True(t, cfg.Redis.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad source", func(c *Config) { c.Fetcher.Source = "api" }, "AMAZON_SOURCE"},
		{"bad transport", func(c *Config) { c.Fetcher.Transport = "curl" }, "AMAZON_TRANSPORT"},
		{"zero attempts", func(c *Config) { c.Fetcher.MaxAttempts = 0 }, "AMAZON_MAX_ATTEMPTS"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"rate limit order", func(c *Config) {
			c.Fetcher.RateLimitMin = 2 * time.Second
			c.Fetcher.RateLimitMax = time.Second
		}, "AMAZON_RATE_LIMIT_MIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRequestTimeoutCoversFetchBudget(t *testing.T) {
	tests := []struct {
		name         string
		fetcher      FetcherConfig
		writeTimeout time.Duration
		budget       time.Duration
		request      time.Duration
		write        time.Duration
	}{
		{
			name:         "defaults with warm-up",
			fetcher:      FetcherConfig{MaxAttempts: 3, Timeout: 20 * time.Second, BackoffUnit: time.Second, WarmUp: true},
			writeTimeout: 60 * time.Second,
			budget:       83 * time.Second,
			request:      88 * time.Second,
			write:        93 * time.Second,
		},
		{
			name:         "no warm-up",
			fetcher:      FetcherConfig{MaxAttempts: 3, Timeout: 20 * time.Second, BackoffUnit: time.Second},
			writeTimeout: 60 * time.Second,
			budget:       63 * time.Second,
			request:      68 * time.Second,
			write:        73 * time.Second,
		},
		{
			name:         "throttle adds per attempt",
			fetcher:      FetcherConfig{MaxAttempts: 2, Timeout: 5 * time.Second, BackoffUnit: time.Second, RateLimitMax: 2 * time.Second},
			writeTimeout: 60 * time.Second,
			budget:       15 * time.Second,
			request:      20 * time.Second,
			write:        60 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{WriteTimeout: tt.writeTimeout}, Fetcher: tt.fetcher}

			assert.Equal(t, tt.budget, cfg.Fetcher.FetchBudget())
			assert.Equal(t, tt.request, cfg.RequestTimeout())
			assert.Equal(t, tt.write, cfg.HTTPWriteTimeout())
			assert.Greater(t, cfg.HTTPWriteTimeout(), cfg.RequestTimeout())
		})
	}
}

type failingSource struct{}

func (failingSource) Lookup(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestResolverPrimaryThenSecondary(t *testing.T) {
	ctx := context.Background()
	primary := MapSource{"imgw": "200"}
	secondary := MapSource{"imgw": "999", "imgh": "300", "showprice": "0", "partner_de": "sibling-21"}

	r := NewResolver(nil, primary, secondary)

	assert.Equal(t, 200, r.Int(ctx, "imgw", 120))
	assert.Equal(t, 300, r.Int(ctx, "imgh", 160))
	assert.False(t, r.Bool(ctx, "showprice", true))
	assert.Equal(t, "sibling-21", r.String(ctx, "partner_de", ""))
	assert.Equal(t, "", r.String(ctx, "partner_us", ""))
}

func TestResolverEmptyPrimaryFallsThrough(t *testing.T) {
	ctx := context.Background()
	primary := MapSource{"partner_de": "", "imgw": "", "showprice": " "}
	secondary := MapSource{"partner_de": "sibling-21", "imgw": "250", "showprice": "0"}

	r := NewResolver(nil, primary, secondary)

	assert.Equal(t, "sibling-21", r.String(ctx, "partner_de", ""))
	assert.Equal(t, 250, r.Int(ctx, "imgw", 120))
	assert.False(t, r.Bool(ctx, "showprice", true))

	value, ok := NewResolver(nil, primary).Lookup(ctx, "partner_de")
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestResolverEmptyEnvFallsThrough(t *testing.T) {
	t.Setenv("AMAZON_PARTNER_DE", "")
	r := NewResolver(nil, NewEnvSource("AMAZON_"), MapSource{"partner_de": "sibling-21"})

	assert.Equal(t, "sibling-21", r.String(context.Background(), "partner_de", ""))
}

func TestResolverSkipsBrokenSources(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(nil, failingSource{}, MapSource{"imgw": "50", "imgh": "abc", "showprice": "maybe"})

	assert.Equal(t, 50, r.Int(ctx, "imgw", 120))
	assert.Equal(t, 160, r.Int(ctx, "imgh", 160))
	assert.True(t, r.Bool(ctx, "showprice", true))
}

func TestEnvSource(t *testing.T) {
	t.Setenv("AMAZON_PARTNER_DE", "env-21")
	src := NewEnvSource("AMAZON_")

	value, err := src.Lookup(context.Background(), "partner_de")
	require.NoError(t, err)
	assert.Equal(t, "env-21", value)

	_, err = src.Lookup(context.Background(), "partner_jp")
	assert.ErrorIs(t, err, ErrNotFound)
}
