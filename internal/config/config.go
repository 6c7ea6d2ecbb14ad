// Package config loads server configuration from flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/notes-server/internal/logger"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Enrichment EnrichmentConfig
	Search     SearchConfig
	RateLimit  RateLimitConfig
	Metrics    MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty; empty picks by environment
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds the sqlite location.
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	KeyPath string
	// AccessTokenKey is filled in by auth.LoadOrGenerateKey at startup.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
}

// EnrichmentConfig controls dispatch to the external processor and its callbacks.
type EnrichmentConfig struct {
	// DefaultWebhookURL is used when the admin record has no webhook URL.
	DefaultWebhookURL string
	// WebhookSecret, when set, is required as a bearer token on inbound callbacks.
	WebhookSecret    string
	RequestTimeout   time.Duration
	PollInterval     time.Duration
	BatchSize        int
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	LeaseDuration    time.Duration
	Retention        time.Duration
	SettingsCacheTTL time.Duration
}

// SearchConfig holds full-text index configuration.
type SearchConfig struct {
	Enabled bool
	Path    string
}

// RateLimitConfig holds limiter settings for public-facing routes.
type RateLimitConfig struct {
	WebhookRPS      int
	WebhookBurst    int
	SubmitPerMinute int
	SubmitBurst     int
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses args and the environment into a validated Config.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("notes-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	dataPath := fs.String("data-path", "", "Base directory for the database, key and search index")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	dbPath := fs.String("database-path", "", "SQLite database file (default: {data}/notes.db)")
	webhookURL := fs.String("webhook-url", "", "Default enrichment webhook URL")
	searchEnabled := fs.String("search-enabled", "", "Enable the full-text note index (default: true)")
	metricsEnabled := fs.String("metrics-enabled", "", "Expose /metrics (default: true)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DATABASE_PATH", ""),
		},
		Auth: AuthConfig{
			KeyPath: getConfigValue("", "AUTH_KEY_PATH", ""),
		},
		Enrichment: EnrichmentConfig{
			DefaultWebhookURL: getConfigValue(*webhookURL, "N8N_WEBHOOK_URL", ""),
			WebhookSecret:     getConfigValue("", "N8N_WEBHOOK_SECRET", ""),
			BatchSize:         getIntConfigValue("", "ENRICHMENT_BATCH_SIZE", 25),
			MaxAttempts:       getIntConfigValue("", "ENRICHMENT_MAX_ATTEMPTS", 6),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
			Path:    getConfigValue("", "SEARCH_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			WebhookRPS:      getIntConfigValue("", "WEBHOOK_RATE_LIMIT", 20),
			WebhookBurst:    getIntConfigValue("", "WEBHOOK_RATE_BURST", 40),
			SubmitPerMinute: getIntConfigValue("", "NOTE_RATE_LIMIT", 30),
			SubmitBurst:     getIntConfigValue("", "NOTE_RATE_BURST", 10),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolConfigValue(*metricsEnabled, "METRICS_ENABLED", true),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Auth.AccessTokenDuration, "", "ACCESS_TOKEN_DURATION", "720h"},
		{&cfg.Enrichment.RequestTimeout, "", "ENRICHMENT_TIMEOUT", "10s"},
		{&cfg.Enrichment.PollInterval, "", "ENRICHMENT_POLL_INTERVAL", "5s"},
		{&cfg.Enrichment.BackoffBase, "", "ENRICHMENT_BACKOFF_BASE", "10s"},
		{&cfg.Enrichment.BackoffMax, "", "ENRICHMENT_BACKOFF_MAX", "30m"},
		{&cfg.Enrichment.LeaseDuration, "", "ENRICHMENT_LEASE", "2m"},
		{&cfg.Enrichment.Retention, "", "ENRICHMENT_RETENTION", "168h"},
		{&cfg.Enrichment.SettingsCacheTTL, "", "SETTINGS_CACHE_TTL", "30s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and consistent.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	if !logger.ValidLevel(c.Logger.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if f := c.Logger.Format; f != "" && f != "json" && f != "pretty" {
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", f)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}

	e := c.Enrichment
	if e.MaxAttempts < 1 {
		return fmt.Errorf("enrichment max attempts must be at least 1, got %d", e.MaxAttempts)
	}
	if e.BatchSize < 1 {
		return fmt.Errorf("enrichment batch size must be at least 1, got %d", e.BatchSize)
	}
	if e.PollInterval <= 0 || e.RequestTimeout <= 0 {
		return errors.New("enrichment poll interval and request timeout must be positive")
	}
	if e.BackoffBase <= 0 || e.BackoffBase > e.BackoffMax {
		return fmt.Errorf("enrichment backoff base %s must be positive and not exceed max %s", e.BackoffBase, e.BackoffMax)
	}
	if e.DefaultWebhookURL != "" {
		if err := ValidateWebhookURL(e.DefaultWebhookURL); err != nil {
			return fmt.Errorf("N8N_WEBHOOK_URL: %w", err)
		}
	}

	if c.RateLimit.WebhookRPS < 1 || c.RateLimit.SubmitPerMinute < 1 {
		return errors.New("rate limits must be at least 1")
	}

	return nil
}

// ValidateWebhookURL reports whether raw is an absolute http(s) URL.
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be absolute http or https, got %q", raw)
	}
	return nil
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataPath, err := expandPath(c.App.DataPath, filepath.Join(homeDir, "NotesServer"))
	if err != nil {
		return err
	}
	c.App.DataPath = dataPath

	if c.Database.Path, err = expandPath(c.Database.Path, filepath.Join(dataPath, "notes.db")); err != nil {
		return err
	}
	if c.Auth.KeyPath, err = expandPath(c.Auth.KeyPath, filepath.Join(dataPath, "auth.key")); err != nil {
		return err
	}
	if c.Search.Path, err = expandPath(c.Search.Path, filepath.Join(dataPath, "search")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes path absolute, using defaultPath when path is empty.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path without overriding the environment.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
