package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Browser     BrowserConfig
	Locator     LocatorConfig
	Capture     CaptureConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	Cache       CacheConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
	ProxyServer    string
}

type LocatorConfig struct {
	Strategies []string
	MinAdLinks int
}

type CaptureConfig struct {
	Methods      []string
	Margin       float64
	Timeout      time.Duration
	RateLimitMin time.Duration
	RateLimitMax time.Duration
	MaxRetries   int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ObjectStoreConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	SeenTTL  time.Duration
	BlockTTL time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1440),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ko-KR"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Locator: LocatorConfig{
			Strategies: getStringSliceOrDefault("LOCATOR_STRATEGIES", defaultStrategies()),
			MinAdLinks: getIntOrDefault("LOCATOR_MIN_AD_LINKS", 3),
		},
		Capture: CaptureConfig{
			Methods:      getStringSliceOrDefault("CAPTURE_METHODS", defaultMethods()),
			Margin:       getFloatOrDefault("CAPTURE_MARGIN", 8),
			Timeout:      getDurationOrDefault("CAPTURE_TIMEOUT", 15*time.Second),
			RateLimitMin: getDurationOrDefault("CAPTURE_RATE_LIMIT_MIN", 3*time.Second),
			RateLimitMax: getDurationOrDefault("CAPTURE_RATE_LIMIT_MAX", 10*time.Second),
			MaxRetries:   getIntOrDefault("CAPTURE_MAX_RETRIES", 2),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "searcap"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:      getEnvOrDefault("STORE_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnvOrDefault("STORE_ACCESS_KEY", ""),
			SecretKey:     getEnvOrDefault("STORE_SECRET_KEY", ""),
			Bucket:        getEnvOrDefault("STORE_BUCKET", "searcap-captures"),
			Region:        getEnvOrDefault("STORE_REGION", "ap-northeast-2"),
			UseSSL:        getBoolOrDefault("STORE_USE_SSL", false),
			PublicBaseURL: getEnvOrDefault("STORE_PUBLIC_BASE_URL", ""),
		},
		Cache: CacheConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			SeenTTL:  getDurationOrDefault("CACHE_SEEN_TTL", 6*time.Hour),
			BlockTTL: getDurationOrDefault("CACHE_BLOCK_TTL", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Locator.Strategies) == 0 {
		return fmt.Errorf("LOCATOR_STRATEGIES must enable at least one strategy")
	}

	if len(c.Capture.Methods) == 0 {
		return fmt.Errorf("CAPTURE_METHODS must enable at least one method")
	}

	if c.Capture.Margin < 0 {
		return fmt.Errorf("CAPTURE_MARGIN cannot be negative")
	}

	if c.Capture.RateLimitMin > c.Capture.RateLimitMax {
		return fmt.Errorf("CAPTURE_RATE_LIMIT_MIN cannot be greater than CAPTURE_RATE_LIMIT_MAX")
	}

	if c.Locator.MinAdLinks < 1 {
		return fmt.Errorf("LOCATOR_MIN_AD_LINKS must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func defaultStrategies() []string {
	return []string{"known-selector", "heading-text", "ad-link-density", "attribute-scan"}
}

func defaultMethods() []string {
	return []string{"element", "bounding-box-clip", "scroll-crop", "full-page"}
}
