package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	Seed           int64         `mapstructure:"SEED"`
	Rows           int           `mapstructure:"ROWS"`
	Year           int           `mapstructure:"YEAR"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	TableCacheSize int           `mapstructure:"TABLE_CACHE_SIZE"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "SEED", "ROWS", "YEAR", "CACHE_TTL", "TABLE_CACHE_SIZE", "CORS_ORIGINS",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
}

// Load reads configuration from the environment and an optional .env file.
// Unlike the server's database and Redis settings, nothing is required:
// without DATABASE_URL the db health route and load command are disabled,
// without REDIS_URL charts are cached in process.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("SEED", 42)
	v.SetDefault("ROWS", 200)
	v.SetDefault("YEAR", 2023)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("TABLE_CACHE_SIZE", 16)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind explicitly so Unmarshal sees env vars without a config file.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = splitList(origins)
		}
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether a PostgreSQL connection string was supplied.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate rejects settings the generator or server cannot run with.
func (c *Config) Validate() error {
	if c.Rows <= 0 {
		return fmt.Errorf("ROWS must be positive, got %d", c.Rows)
	}
	if c.Year < 1900 || c.Year > 9999 {
		return fmt.Errorf("YEAR must be between 1900 and 9999, got %d", c.Year)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.TableCacheSize <= 0 {
		return fmt.Errorf("TABLE_CACHE_SIZE must be positive, got %d", c.TableCacheSize)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.HasDatabase() && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
