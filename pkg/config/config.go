package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`
	LogFile    string `mapstructure:"LOG_FILE"`

	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// BlockStore selects where hostname blocks live: postgres, redis or sqlite.
	BlockStore string `mapstructure:"BLOCK_STORE"`
	// EventStore selects where account block events and audit logs live: postgres or sqlite.
	EventStore string `mapstructure:"EVENT_STORE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	WorkerHostname  string `mapstructure:"WORKER_HOSTNAME"`
	BlockMinMinutes int    `mapstructure:"BLOCK_MIN_MINUTES"`
	BlockMaxMinutes int    `mapstructure:"BLOCK_MAX_MINUTES"`

	AnalysisCacheTTLMs int     `mapstructure:"ANALYSIS_CACHE_TTL_MS"`
	ElementCacheLimit  int     `mapstructure:"ELEMENT_CACHE_LIMIT"`
	TrackerIntervalMs  int     `mapstructure:"TRACKER_INTERVAL_MS"`
	URLPollIntervalMs  int     `mapstructure:"URL_POLL_INTERVAL_MS"`
	SPASettleMs        int     `mapstructure:"SPA_SETTLE_MS"`
	TrackerMaxWords    int     `mapstructure:"TRACKER_MAX_WORDS"`
	ClickRatePerSec    float64 `mapstructure:"CLICK_RATE_PER_SEC"`

	BrowserDriver          string `mapstructure:"BROWSER_DRIVER"`
	Headless               bool   `mapstructure:"HEADLESS"`
	BrowserBin             string `mapstructure:"BROWSER_BIN"`
	PageLoadTimeoutSeconds int    `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`
}

// Load reads configuration from an optional .env file and environment
// variables into a fresh viper instance.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration through v, which may already carry bound
// command-line flags.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = v.ReadInConfig()

	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about, which the
	// defaults above take care of.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.WorkerHostname == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve worker hostname: %w", err)
		}
		cfg.WorkerHostname = host
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "user")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_DB", "pagestate")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BLOCK_STORE", "postgres")
	v.SetDefault("EVENT_STORE", "postgres")
	v.SetDefault("SQLITE_PATH", "pagestate.db")
	v.SetDefault("WORKER_HOSTNAME", "")
	v.SetDefault("BLOCK_MIN_MINUTES", 40)
	v.SetDefault("BLOCK_MAX_MINUTES", 60)
	v.SetDefault("ANALYSIS_CACHE_TTL_MS", 5000)
	v.SetDefault("ELEMENT_CACHE_LIMIT", 100)
	v.SetDefault("TRACKER_INTERVAL_MS", 3000)
	v.SetDefault("URL_POLL_INTERVAL_MS", 5000)
	v.SetDefault("SPA_SETTLE_MS", 1000)
	v.SetDefault("TRACKER_MAX_WORDS", 5)
	v.SetDefault("CLICK_RATE_PER_SEC", 1.0)
	v.SetDefault("BROWSER_DRIVER", "chromedp")
	v.SetDefault("HEADLESS", true)
	v.SetDefault("BROWSER_BIN", "")
	v.SetDefault("PAGE_LOAD_TIMEOUT_SECONDS", 60)
}

// Validate rejects configurations that would make the fleet lock unsafe or
// select an unknown backend.
func (c *Config) Validate() error {
	if c.BlockMinMinutes <= 0 || c.BlockMaxMinutes <= c.BlockMinMinutes {
		return fmt.Errorf("invalid block window [%d, %d) minutes", c.BlockMinMinutes, c.BlockMaxMinutes)
	}
	switch c.BlockStore {
	case "postgres", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown BLOCK_STORE %q", c.BlockStore)
	}
	switch c.EventStore {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown EVENT_STORE %q", c.EventStore)
	}
	switch c.BrowserDriver {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("unknown BROWSER_DRIVER %q", c.BrowserDriver)
	}
	if c.ElementCacheLimit <= 0 {
		return fmt.Errorf("ELEMENT_CACHE_LIMIT must be positive, got %d", c.ElementCacheLimit)
	}
	return nil
}

// PostgresURL assembles the pgx connection string.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func (c *Config) AnalysisCacheTTL() time.Duration {
	return time.Duration(c.AnalysisCacheTTLMs) * time.Millisecond
}

func (c *Config) TrackerInterval() time.Duration {
	return time.Duration(c.TrackerIntervalMs) * time.Millisecond
}

func (c *Config) URLPollInterval() time.Duration {
	return time.Duration(c.URLPollIntervalMs) * time.Millisecond
}

func (c *Config) SPASettle() time.Duration {
	return time.Duration(c.SPASettleMs) * time.Millisecond
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}
