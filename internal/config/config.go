// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// S3Config holds optional object-storage upload settings.
// All fields must be set together for uploads to be enabled.
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string
	Region   string
	Bucket   string
}

// Config holds the configuration for the gridlake server and tools.
type Config struct {
	ListenAddr   string // HTTP listen address (default ":8080")
	EngineDBPath string // DuckDB database file ("" = in-memory)
	MetaDBPath   string // path to the SQLite catalog metastore
	ExportDir    string // directory export artifacts are written to
	LogLevel     string // log level: debug, info, warn, error (default "info")

	// Auth. Both empty disables auth on the API.
	JWTSecret string // HS256 shared secret for bearer tokens
	APIKey    string // static API key accepted in X-API-Key

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// S3 is nil unless every GRIDLAKE_S3_* variable is set.
	S3 *S3Config

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthEnabled reports whether the API requires authentication.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" || c.APIKey != ""
}

// LoadFromEnv loads configuration from environment variables.
// S3 variables are optional; the server can start without them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		EngineDBPath: os.Getenv("ENGINE_DB_PATH"),
		MetaDBPath:   os.Getenv("META_DB_PATH"),
		ExportDir:    os.Getenv("EXPORT_DIR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		APIKey:       os.Getenv("API_KEY"),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// S3 settings are all-or-nothing.
	s3 := S3Config{
		KeyID:    os.Getenv("GRIDLAKE_S3_KEY_ID"),
		Secret:   os.Getenv("GRIDLAKE_S3_SECRET"),
		Endpoint: os.Getenv("GRIDLAKE_S3_ENDPOINT"),
		Region:   os.Getenv("GRIDLAKE_S3_REGION"),
		Bucket:   os.Getenv("GRIDLAKE_S3_BUCKET"),
	}
	switch {
	case s3.KeyID != "" && s3.Secret != "" && s3.Endpoint != "" && s3.Region != "" && s3.Bucket != "":
		cfg.S3 = &s3
	case s3.KeyID != "" || s3.Secret != "" || s3.Endpoint != "" || s3.Region != "" || s3.Bucket != "":
		cfg.Warnings = append(cfg.Warnings,
			"partial GRIDLAKE_S3_* configuration, uploads disabled (set KEY_ID, SECRET, ENDPOINT, REGION and BUCKET together)")
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "gridlake_meta.sqlite"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if !cfg.AuthEnabled() {
		cfg.Warnings = append(cfg.Warnings, "no JWT_SECRET or API_KEY set, API authentication is disabled")
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
