package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Widget   WidgetConfig
	Fetcher  FetcherConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WidgetConfig holds rendering settings that are not per-directive.
// Image size, price flag and partner ids go through the Resolver instead.
type WidgetConfig struct {
	LinkTarget string
	ImageProxy string
}

type FetcherConfig struct {
	Source            string
	Transport         string
	Delegate          string
	WarmUp            bool
	MaxAttempts       int
	BackoffUnit       time.Duration
	Timeout           time.Duration
	UserAgent         string
	AcceptLanguage    string
	AntiBotIndicators []string
	RateLimitMin      time.Duration
	RateLimitMax      time.Duration
	Headless          bool
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	MaxConns       int32
	SettingsPlugin string
}

// Enabled reports whether a settings database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Enabled reports whether failure reports should be streamed to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Widget: WidgetConfig{
			LinkTarget: getEnvOrDefault("AMAZON_TARGET", ""),
			ImageProxy: getEnvOrDefault("AMAZON_IMAGE_PROXY", ""),
		},
		Fetcher: FetcherConfig{
			Source:            getEnvOrDefault("AMAZON_SOURCE", "page"),
			Transport:         getEnvOrDefault("AMAZON_TRANSPORT", "http"),
			Delegate:          getEnvOrDefault("AMAZON_DELEGATE", "widget"),
			WarmUp:            getBoolOrDefault("AMAZON_WARMUP", true),
			MaxAttempts:       getIntOrDefault("AMAZON_MAX_ATTEMPTS", 3),
			BackoffUnit:       getDurationOrDefault("AMAZON_BACKOFF_UNIT", time.Second),
			Timeout:           getDurationOrDefault("AMAZON_TIMEOUT", 20*time.Second),
			UserAgent:         getEnvOrDefault("AMAZON_USER_AGENT", DefaultUserAgent),
			AcceptLanguage:    getEnvOrDefault("AMAZON_ACCEPT_LANGUAGE", "en-US,en;q=0.9,de;q=0.8"),
			AntiBotIndicators: getStringSliceOrDefault("AMAZON_ANTIBOT_INDICATORS", DefaultAntiBotIndicators()),
			RateLimitMin:      getDurationOrDefault("AMAZON_RATE_LIMIT_MIN", 0),
			RateLimitMax:      getDurationOrDefault("AMAZON_RATE_LIMIT_MAX", 0),
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
		},
		Database: DatabaseConfig{
			Host:           getEnvOrDefault("DB_HOST", ""),
			Port:           getIntOrDefault("DB_PORT", 5432),
			User:           getEnvOrDefault("DB_USER", "postgres"),
			Password:       getEnvOrDefault("DB_PASSWORD", ""),
			Name:           getEnvOrDefault("DB_NAME", "wiki"),
			MaxConns:       int32(getIntOrDefault("DB_MAX_CONNS", 4)),
			SettingsPlugin: getEnvOrDefault("DB_SETTINGS_PLUGIN", "amazon"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:amazonlight_failures"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Fetcher.Source {
	case "page", "widget", "delegate":
	default:
		return fmt.Errorf("AMAZON_SOURCE must be page, widget or delegate, got %q", c.Fetcher.Source)
	}

	switch c.Fetcher.Transport {
	case "http", "browser":
	default:
		return fmt.Errorf("AMAZON_TRANSPORT must be http or browser, got %q", c.Fetcher.Transport)
	}

	if c.Fetcher.MaxAttempts < 1 {
		return fmt.Errorf("AMAZON_MAX_ATTEMPTS must be at least 1")
	}

	if c.Fetcher.BackoffUnit < 0 {
		return fmt.Errorf("AMAZON_BACKOFF_UNIT cannot be negative")
	}

	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("AMAZON_TIMEOUT must be positive")
	}

	if c.Fetcher.RateLimitMin > c.Fetcher.RateLimitMax {
		return fmt.Errorf("AMAZON_RATE_LIMIT_MIN cannot be greater than AMAZON_RATE_LIMIT_MAX")
	}

	return nil
}

// requestHeadroom covers extraction, rendering and writing after a fetch.
const requestHeadroom = 5 * time.Second

// FetchBudget is the longest one fetch can run: the warm-up request, every
// attempt with its throttle wait, and the backoff pauses in between.
func (f FetcherConfig) FetchBudget() time.Duration {
	attempts := f.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	calls := attempts
	if f.WarmUp {
		calls++
	}

	budget := time.Duration(calls) * f.Timeout
	budget += time.Duration(attempts) * f.RateLimitMax
	// linear backoff: 1+2+...+(attempts-1) units
	budget += time.Duration(attempts*(attempts-1)/2) * f.BackoffUnit
	return budget
}

// RequestTimeout bounds a single API request. It leaves room for a full
// fetch, so a slow page still ends in a fallback link rather than a cut
// connection.
func (c *Config) RequestTimeout() time.Duration {
	return c.Fetcher.FetchBudget() + requestHeadroom
}

// HTTPWriteTimeout is SERVER_WRITE_TIMEOUT, raised when needed to stay above
// RequestTimeout.
func (c *Config) HTTPWriteTimeout() time.Duration {
	if floor := c.RequestTimeout() + requestHeadroom; c.Server.WriteTimeout < floor {
		return floor
	}
	return c.Server.WriteTimeout
}

// DefaultUserAgent resembles a current desktop Chrome.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// DefaultAntiBotIndicators are substrings Amazon puts on its captcha and block pages.
func DefaultAntiBotIndicators() []string {
	return []string{
		"api-services-support@amazon.com",
		"/errors/validateCaptcha",
		"captchacharacters",
		"Robot Check",
		"Klicke auf die Schaltfläche unten",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
