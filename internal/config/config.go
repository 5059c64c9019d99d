package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Email    EmailConfig
	Engine   EngineConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// EmailConfig holds outbound email configuration. OperatorAddr receives
// feed-health signals; subscribers never do.
type EmailConfig struct {
	BrevoAPIKey    string
	FromAddr       string
	FromName       string
	OperatorAddr   string
	SendsPerSecond float64
}

// EngineConfig holds matching, dedup, and freshness tuning.
type EngineConfig struct {
	DedupWindow      time.Duration
	StaleThreshold   time.Duration
	OperatorCacheTTL time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "wellwatch")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("EMAIL_FROM_ADDR", "alerts@wellwatch.dev")
	v.SetDefault("EMAIL_FROM_NAME", "WellWatch Alerts")
	v.SetDefault("EMAIL_SENDS_PER_SECOND", 2.0)
	v.SetDefault("DEDUP_WINDOW_DAYS", 7)
	v.SetDefault("FEED_STALE_DAYS", 7)
	v.SetDefault("OPERATOR_CACHE_TTL_MINUTES", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Email: EmailConfig{
			BrevoAPIKey:    v.GetString("BREVO_API_KEY"),
			FromAddr:       v.GetString("EMAIL_FROM_ADDR"),
			FromName:       v.GetString("EMAIL_FROM_NAME"),
			OperatorAddr:   v.GetString("EMAIL_OPERATOR_ADDR"),
			SendsPerSecond: v.GetFloat64("EMAIL_SENDS_PER_SECOND"),
		},
		Engine: EngineConfig{
			DedupWindow:      time.Duration(v.GetInt("DEDUP_WINDOW_DAYS")) * 24 * time.Hour,
			StaleThreshold:   time.Duration(v.GetInt("FEED_STALE_DAYS")) * 24 * time.Hour,
			OperatorCacheTTL: time.Duration(v.GetInt("OPERATOR_CACHE_TTL_MINUTES")) * time.Minute,
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate email config
	if c.Email.FromAddr == "" {
		return fmt.Errorf("EMAIL_FROM_ADDR is required")
	}
	if c.Email.SendsPerSecond <= 0 {
		return fmt.Errorf("EMAIL_SENDS_PER_SECOND must be positive")
	}

	// Validate engine config
	if c.Engine.DedupWindow <= 0 {
		return fmt.Errorf("DEDUP_WINDOW_DAYS must be positive")
	}
	if c.Engine.StaleThreshold <= 0 {
		return fmt.Errorf("FEED_STALE_DAYS must be positive")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
