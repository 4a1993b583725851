package config

import (
	"os"
	"strconv"
	"time"

	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Remote site
	BaseURL       string
	ScreenshotURL string
	UserAgent     string

	// Fetcher limits
	MaxConcurrent   int
	MaxConnsPerHost int
	RequestTimeout  time.Duration

	// Files
	InstancesFile string
	ManifestFile  string
	DatabasePath  string

	// Memcache page cache, disabled when empty
	MemcacheAddr string
	PageCacheTTL time.Duration

	// Redis stream publishing, disabled when empty
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	maxConcurrent, _ := strconv.Atoi(getEnv("SCRAPER_MAX_CONCURRENT", "15"))
	maxConnsPerHost, _ := strconv.Atoi(getEnv("SCRAPER_MAX_CONNS_PER_HOST", "10"))
	timeoutSeconds, _ := strconv.Atoi(getEnv("SCRAPER_TIMEOUT_SECONDS", "30"))
	cacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "3600"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))

	return &Config{
		BaseURL:              getEnv("SCRAPER_BASE_URL", "https://www.wowhead.com"),
		ScreenshotURL:        getEnv("SCRAPER_SCREENSHOT_URL", "https://wow.zamimg.com/uploads/screenshots/normal"),
		UserAgent:            getEnv("SCRAPER_USER_AGENT", ""),
		MaxConcurrent:        maxConcurrent,
		MaxConnsPerHost:      maxConnsPerHost,
		RequestTimeout:       time.Duration(timeoutSeconds) * time.Second,
		InstancesFile:        getEnv("INSTANCES_FILE", "instances.json"),
		ManifestFile:         getEnv("MANIFEST_FILE", ""),
		DatabasePath:         getEnv("DATABASE_PATH", "instances.db"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		PageCacheTTL:         time.Duration(cacheTTL) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "instances"),
		RedisStreamMaxLength: streamMaxLength,
		Environment:          getEnv("SCRAPER_ENVIRONMENT", "development"),
	}
}

// Validate checks the limits the fetcher relies on
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return scrapeerrors.NewConfiguration("SCRAPER_BASE_URL must not be empty", nil)
	}
	if c.MaxConcurrent <= 0 {
		return scrapeerrors.NewConfiguration("SCRAPER_MAX_CONCURRENT must be positive", nil)
	}
	if c.MaxConnsPerHost <= 0 {
		return scrapeerrors.NewConfiguration("SCRAPER_MAX_CONNS_PER_HOST must be positive", nil)
	}
	if c.RequestTimeout <= 0 {
		return scrapeerrors.NewConfiguration("SCRAPER_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.InstancesFile == "" {
		return scrapeerrors.NewConfiguration("INSTANCES_FILE must not be empty", nil)
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return scrapeerrors.NewConfiguration("REDIS_STREAM must be set when REDIS_ADDR is set", nil)
	}
	return nil
}

// IsProduction reports whether the scraper runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
