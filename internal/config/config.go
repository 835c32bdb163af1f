package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maltedev/amazon-review-scraper/internal/export"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
)

const (
	MinPages = 1
	MaxPages = 20
)

// Countries maps the supported storefront codes to their domains.
var Countries = map[string]string{
	"US": "amazon.com",
	"DE": "amazon.de",
	"CA": "amazon.ca",
	"JP": "amazon.co.jp",
	"AU": "amazon.com.au",
	"BR": "amazon.com.br",
	"MX": "amazon.com.mx",
	"NL": "amazon.nl",
}

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Delays   pacing.Delays
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Consumer ConsumerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	QueueSize       int
	EventBuffer     int
}

type ScraperConfig struct {
	Country         string
	Domain          string
	MaxPages        int
	MaxResults      int
	MaxLoginRetries int
	OutputDir       string
	SearchCacheSize int
	SearchCacheTTL  time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode, d.MaxConns)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

// ConsumerConfig drives review-consumer, which turns stream requests into API jobs.
type ConsumerConfig struct {
	APIURL string
	Stream string
	Group  string
	Name   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment after merging the given
// .env files (".env" by default). Variables already set win over the files.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	country := strings.ToUpper(getEnvOrDefault("AMAZON_COUNTRY", "US"))
	defaults := pacing.DefaultDelays()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			QueueSize:       getIntOrDefault("SERVER_QUEUE_SIZE", 100),
			EventBuffer:     getIntOrDefault("SERVER_EVENT_BUFFER", 256),
		},
		Scraper: ScraperConfig{
			Country:         country,
			Domain:          getEnvOrDefault("AMAZON_DOMAIN", Countries[country]),
			MaxPages:        getIntOrDefault("SCRAPER_MAX_PAGES", 5),
			MaxResults:      getIntOrDefault("SCRAPER_MAX_RESULTS", 10),
			MaxLoginRetries: getIntOrDefault("SCRAPER_MAX_LOGIN_RETRIES", 2),
			OutputDir:       getEnvOrDefault("OUTPUT_DIR", export.DefaultOutputDir()),
			SearchCacheSize: getIntOrDefault("SCRAPER_SEARCH_CACHE_SIZE", 64),
			SearchCacheTTL:  getDurationOrDefault("SCRAPER_SEARCH_CACHE_TTL", 15*time.Minute),
		},
		Delays: pacing.Delays{
			PageLoad:      getRangeOrDefault("PAGE_LOAD", defaults.PageLoad),
			Interaction:   getRangeOrDefault("INTERACTION", defaults.Interaction),
			Transition:    getRangeOrDefault("TRANSITION", defaults.Transition),
			Login:         getRangeOrDefault("LOGIN", defaults.Login),
			LoginComplete: getRangeOrDefault("LOGIN_COMPLETE", defaults.LoginComplete),
			TwoFactor:     getRangeOrDefault("TWO_FA", defaults.TwoFactor),
			Retry:         getRangeOrDefault("RETRY", defaults.Retry),
			Typing:        getRangeOrDefault("TYPING", defaults.Typing),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", false),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "amazon_reviews"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:review_scraper_events"),
		},
		Consumer: ConsumerConfig{
			APIURL: getEnvOrDefault("REVIEW_API_URL", "http://localhost:8080"),
			Stream: getEnvOrDefault("REDIS_REQUEST_STREAM", "stream:review_requests"),
			Group:  getEnvOrDefault("REDIS_CONSUMER_GROUP", "review-consumer-group"),
			Name:   getEnvOrDefault("REDIS_CONSUMER_NAME", "consumer-1"),
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
	if _, ok := Countries[c.Scraper.Country]; !ok {
		return fmt.Errorf("unknown AMAZON_COUNTRY %q", c.Scraper.Country)
	}

	if c.Scraper.Domain == "" {
		return fmt.Errorf("AMAZON_DOMAIN is required")
	}

	if c.Scraper.MaxPages < MinPages || c.Scraper.MaxPages > MaxPages {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be between %d and %d", MinPages, MaxPages)
	}

	if c.Scraper.MaxResults < 1 {
		return fmt.Errorf("SCRAPER_MAX_RESULTS must be at least 1")
	}

	if c.Scraper.MaxLoginRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_LOGIN_RETRIES must be at least 1")
	}

	if err := c.Delays.Validate(); err != nil {
		return fmt.Errorf("invalid delays: %w", err)
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

// getRangeOrDefault reads DELAY_<name>_MIN and DELAY_<name>_MAX.
func getRangeOrDefault(name string, defaultValue pacing.Range) pacing.Range {
	return pacing.Range{
		Min: getDurationOrDefault("DELAY_"+name+"_MIN", defaultValue.Min),
		Max: getDurationOrDefault("DELAY_"+name+"_MAX", defaultValue.Max),
	}
}
