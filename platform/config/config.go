// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetEnv() string
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerMinute() int
}

// RedisConfig provides the Redis connection used by the visitor store.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// FinderConfig provides settings for the Smart Finder conversation engine.
type FinderConfig interface {
	GetFinderConfigSource() string
	GetFinderLeadEndpoint() string
	GetFinderLeadTimeout() time.Duration
	GetFinderSessionIdleTTL() time.Duration
	GetFinderCloseDelay() time.Duration
	GetPhoneDefaultRegion() string
}

// SMTPConfig provides settings for outbound sales notifications.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSalesNotificationAddress() string
	IsSMTPEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RateLimitPerMinute       int
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	FinderConfigSource       string
	FinderLeadEndpoint       string
	FinderLeadTimeout        time.Duration
	FinderSessionIdleTTL     time.Duration
	FinderCloseDelay         time.Duration
	PhoneDefaultRegion       string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	SalesNotificationAddress string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// IsDatabaseEnabled reports whether lead intake has a database to write to.
func (c *Config) IsDatabaseEnabled() bool { return c.DatabaseURL != "" }

// HTTPConfig implementation
func (c *Config) GetEnv() string             { return c.Env }
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// FinderConfig implementation
func (c *Config) GetFinderConfigSource() string           { return c.FinderConfigSource }
func (c *Config) GetFinderLeadEndpoint() string           { return c.FinderLeadEndpoint }
func (c *Config) GetFinderLeadTimeout() time.Duration     { return c.FinderLeadTimeout }
func (c *Config) GetFinderSessionIdleTTL() time.Duration  { return c.FinderSessionIdleTTL }
func (c *Config) GetFinderCloseDelay() time.Duration      { return c.FinderCloseDelay }
func (c *Config) GetPhoneDefaultRegion() string           { return c.PhoneDefaultRegion }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string                 { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                    { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string             { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string             { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string            { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string         { return c.EmailFromAddress }
func (c *Config) GetSalesNotificationAddress() string { return c.SalesNotificationAddress }
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.SalesNotificationAddress != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:8000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitPerMinute:       mustInt(getEnv("RATE_LIMIT_PER_MINUTE", "120")),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		FinderConfigSource:       getEnv("FINDER_CONFIG_SOURCE", "smart-finder-config.yaml"),
		FinderLeadEndpoint:       getEnv("FINDER_LEAD_ENDPOINT", ""),
		FinderLeadTimeout:        mustDuration(getEnv("FINDER_LEAD_TIMEOUT", "10s")),
		FinderSessionIdleTTL:     mustDuration(getEnv("FINDER_SESSION_IDLE_TTL", "1h")),
		FinderCloseDelay:         mustDuration(getEnv("FINDER_CLOSE_DELAY", "3s")),
		PhoneDefaultRegion:       strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "FR")),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Smart Finder"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		SalesNotificationAddress: getEnv("SALES_NOTIFICATION_ADDRESS", ""),
	}

	if cfg.FinderConfigSource == "" {
		return nil, fmt.Errorf("FINDER_CONFIG_SOURCE is required")
	}
	if cfg.FinderLeadTimeout <= 0 {
		return nil, fmt.Errorf("FINDER_LEAD_TIMEOUT must be a positive duration")
	}
	if cfg.IsSMTPEnabled() && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
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
