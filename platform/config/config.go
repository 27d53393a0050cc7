// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DirectionsConfig provides the directions backend location.
type DirectionsConfig interface {
	GetDirectionsScheme() string
	GetDirectionsHost() string
	GetDirectionsProfile() string
	GetDirectionsTimeout() time.Duration
}

// DebugLogConfig provides settings for the on-disk debug log.
type DebugLogConfig interface {
	GetDebugLogDir() string
	GetDebugLogMaxAge() time.Duration
	GetDebugLogSchemaVersion() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides settings for the asynq job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketDebugLogs() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application settings.
type Config struct {
	Env      string
	HTTPAddr string

	CORSAllowAll   bool
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	DirectionsScheme  string
	DirectionsHost    string
	DirectionsProfile string
	DirectionsTimeout time.Duration

	DebugLogDir           string
	DebugLogMaxAge        time.Duration
	DebugLogSchemaVersion int

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinIOMaxFileSize     int64
	MinioBucketDebugLogs string
}

// fileOverlay is the optional YAML document pointed to by CONFIG_FILE.
// Only non-empty values override the environment.
type fileOverlay struct {
	Directions struct {
		Scheme  string `yaml:"scheme"`
		Host    string `yaml:"host"`
		Profile string `yaml:"profile"`
		Timeout string `yaml:"timeout"`
	} `yaml:"directions"`
	DebugLog struct {
		Dir    string `yaml:"dir"`
		MaxAge string `yaml:"max_age"`
	} `yaml:"debug_log"`
}

// DirectionsConfig implementation
func (c *Config) GetDirectionsScheme() string         { return c.DirectionsScheme }
func (c *Config) GetDirectionsHost() string           { return c.DirectionsHost }
func (c *Config) GetDirectionsProfile() string        { return c.DirectionsProfile }
func (c *Config) GetDirectionsTimeout() time.Duration { return c.DirectionsTimeout }

// DebugLogConfig implementation
func (c *Config) GetDebugLogDir() string           { return c.DebugLogDir }
func (c *Config) GetDebugLogMaxAge() time.Duration { return c.DebugLogMaxAge }
func (c *Config) GetDebugLogSchemaVersion() int    { return c.DebugLogSchemaVersion }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64      { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketDebugLogs() string { return c.MinioBucketDebugLogs }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables, then applies the
// optional YAML overlay named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		RateLimitRPS:          mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst:        mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		DirectionsScheme:      getEnv("DIRECTIONS_SCHEME", "http"),
		DirectionsHost:        getEnv("DIRECTIONS_HOST", "206.189.205.9"),
		DirectionsProfile:     getEnv("DIRECTIONS_PROFILE", "driving"),
		DirectionsTimeout:     mustDuration(getEnv("DIRECTIONS_TIMEOUT", "0s")),
		DebugLogDir:           getEnv("DEBUG_LOG_DIR", defaultDebugLogDir()),
		DebugLogMaxAge:        mustDuration(getEnv("DEBUG_LOG_MAX_AGE", "168h")),
		DebugLogSchemaVersion: mustInt(getEnv("DEBUG_LOG_SCHEMA_VERSION", "1")),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "debuglog"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:      mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "10485760")),
		MinioBucketDebugLogs:  getEnv("MINIO_BUCKET_DEBUG_LOGS", "debug-logs"),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DirectionsHost == "" {
		return nil, fmt.Errorf("DIRECTIONS_HOST is required")
	}
	if cfg.DirectionsScheme != "http" && cfg.DirectionsScheme != "https" {
		return nil, fmt.Errorf("DIRECTIONS_SCHEME must be http or https, got %q", cfg.DirectionsScheme)
	}
	if cfg.DebugLogDir == "" {
		return nil, fmt.Errorf("DEBUG_LOG_DIR is required when no user cache directory is available")
	}
	if cfg.DebugLogSchemaVersion < 1 {
		return nil, fmt.Errorf("DEBUG_LOG_SCHEMA_VERSION must be positive")
	}
	if cfg.IsMinIOEnabled() && (cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "") {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if v := overlay.Directions.Scheme; v != "" {
		c.DirectionsScheme = v
	}
	if v := overlay.Directions.Host; v != "" {
		c.DirectionsHost = v
	}
	if v := overlay.Directions.Profile; v != "" {
		c.DirectionsProfile = v
	}
	if v := overlay.Directions.Timeout; v != "" {
		c.DirectionsTimeout = mustDuration(v)
	}
	if v := overlay.DebugLog.Dir; v != "" {
		c.DebugLogDir = v
	}
	if v := overlay.DebugLog.MaxAge; v != "" {
		c.DebugLogMaxAge = mustDuration(v)
	}
	return nil
}

// defaultDebugLogDir keeps debug logs under the user cache directory, which
// backup tools skip by convention.
func defaultDebugLogDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bikestreets", "debuglog")
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
