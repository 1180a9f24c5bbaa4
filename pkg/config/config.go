package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 環境変数はここでのみ読み込む
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// CPI data
	CPI CPIConfig

	// Database (optional CPI source)
	Database DatabaseConfig

	// Redis (rate cache, retry limiter)
	Redis RedisConfig

	// Exchange rate provider
	Rates RatesConfig

	// Static artifacts
	Site SiteConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// CPIConfig holds where the CPI table is loaded from
type CPIConfig struct {
	DataPath string // JSON or CSV file
	Source   string // file, postgres
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was supplied
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// RatesConfig holds exchange rate provider configuration
type RatesConfig struct {
	BaseURL           string
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration // per attempt
	FetchTimeout      time.Duration // one fetch including every retry
	CacheTTL          time.Duration
	RequestsPerSecond float64
	RefreshSchedule   string // cron expression with seconds
	RetryLimitPerMin  int    // manual retries per client per minute
}

// SiteConfig holds settings for sitemap and prerendered pages
type SiteConfig struct {
	Domain           string
	OGImageBase      string
	HTMLTemplatePath string // optional; embedded shell is used when empty
	OutputDir        string
	RoutePlanPath    string // optional; embedded plan is used when empty
	SitemapSchedule  string
}

// Load reads configuration from environment variables
// ⭐ SSOT: os.Getenv() を呼ぶのはこの関数だけ
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		CPI: CPIConfig{
			DataPath: getEnv("CPI_DATA_PATH", "data/cpi_all.json"),
			Source:   getEnv("CPI_SOURCE", "file"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Rates: RatesConfig{
			BaseURL:           getEnv("RATES_API_URL", "https://api.coingecko.com"),
			MaxRetries:        getEnvAsInt("RATES_MAX_RETRIES", 3),
			RetryDelay:        getEnvAsDuration("RATES_RETRY_DELAY", "1s"),
			Timeout:           getEnvAsDuration("RATES_TIMEOUT", "10s"),
			FetchTimeout:      getEnvAsDuration("RATES_FETCH_TIMEOUT", "20s"),
			CacheTTL:          getEnvAsDuration("RATES_CACHE_TTL", "10m"),
			RequestsPerSecond: getEnvAsFloat("RATES_REQUESTS_PER_SECOND", 2),
			RefreshSchedule:   getEnv("RATES_REFRESH_SCHEDULE", "0 */10 * * * *"),
			RetryLimitPerMin:  getEnvAsInt("RETRY_LIMIT_PER_MINUTE", 10),
		},

		Site: SiteConfig{
			Domain:           getEnv("SITE_DOMAIN", "imaikura.creco.net"),
			OGImageBase:      getEnv("OG_IMAGE_BASE", "https://creco.net/misc/imaikura/og"),
			HTMLTemplatePath: getEnv("HTML_TEMPLATE_PATH", ""),
			OutputDir:        getEnv("OUTPUT_DIR", "dist"),
			RoutePlanPath:    getEnv("ROUTE_PLAN_PATH", ""),
			SitemapSchedule:  getEnv("SITEMAP_SCHEDULE", "0 0 4 * * *"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.CPI.Source != "file" && c.CPI.Source != "postgres" {
		return fmt.Errorf("CPI_SOURCE must be one of: file, postgres")
	}

	if c.CPI.Source == "postgres" && !c.Database.Enabled() {
		return fmt.Errorf("DATABASE_URL is required when CPI_SOURCE=postgres")
	}

	if c.Rates.MaxRetries < 0 {
		return fmt.Errorf("RATES_MAX_RETRIES must not be negative")
	}

	if c.Rates.FetchTimeout <= 0 {
		return fmt.Errorf("RATES_FETCH_TIMEOUT must be positive")
	}

	if c.Rates.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATES_REQUESTS_PER_SECOND must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
