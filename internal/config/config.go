package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Telegram TelegramConfig
	LLM      LLMConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Session  SessionConfig
	Tracker  TrackerConfig
}

// ServerConfig holds settings for the operational HTTP server.
type ServerConfig struct {
	Enabled         bool          `envconfig:"SERVER_ENABLED" default:"true"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"pricetracker"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// TelegramConfig holds bot transport settings.
type TelegramConfig struct {
	Token         string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	Mode          string        `envconfig:"TELEGRAM_MODE" default:"polling"` // polling or webhook
	WebhookURL    string        `envconfig:"TELEGRAM_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	PollTimeout   time.Duration `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60s"`
}

// LLMConfig holds settings for the extraction model behind the scraper.
type LLMConfig struct {
	APIKey string `envconfig:"LLM_API_KEY"`
	Model  string `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
}

// Temperature is fixed so the oracle answers deterministically.
func (l *LLMConfig) Temperature() float32 {
	return 0.0
}

// ScraperConfig holds page fetching and worker pool settings.
type ScraperConfig struct {
	Workers      int           `envconfig:"SCRAPER_WORKERS" default:"4"`
	Fetcher      string        `envconfig:"SCRAPER_FETCHER" default:"http"` // http or browser
	FetchTimeout time.Duration `envconfig:"SCRAPER_FETCH_TIMEOUT" default:"30s"`
	MaxPageBytes int64         `envconfig:"SCRAPER_MAX_PAGE_BYTES" default:"2097152"`
	MaxTextRunes int           `envconfig:"SCRAPER_MAX_TEXT_RUNES" default:"20000"`
	UserAgent    string        `envconfig:"SCRAPER_USER_AGENT" default:"Mozilla/5.0 (compatible; pricetracker/1.0)"`
}

// DatabaseConfig holds tracked-item store settings.
type DatabaseConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	URI      string `envconfig:"DB_SERVICE_URI" default:""`
	Path     string `envconfig:"DB_PATH" default:"./data/pricetracker.db"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"pricetracker"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// SessionConfig holds conversation state store settings.
type SessionConfig struct {
	Store string        `envconfig:"SESSION_STORE" default:"memory"` // memory or redis
	TTL   time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// TrackerConfig holds price tracking limits and the reconciliation schedule.
type TrackerConfig struct {
	MaxItemLimit  int           `envconfig:"MAX_ITEM_LIMIT" default:"5"`
	CronInterval  int           `envconfig:"CRON_INTERVAL" default:"10"` // seconds
	ErrorCooldown time.Duration `envconfig:"CRON_ERROR_COOLDOWN" default:"60s"`
}

// Interval returns the pause between reconciliation passes.
func (t *TrackerConfig) Interval() time.Duration {
	return time.Duration(t.CronInterval) * time.Second
}

// DSN returns the driver-specific data source name for the configured database type.
func (d *DatabaseConfig) DSN() string {
	if d.URI != "" {
		return d.URI
	}
	switch d.Type {
	case "postgres", "postgresql":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	default:
		return d.Path
	}
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_TYPE %q", c.Database.Type))
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store))
	}
	switch c.Scraper.Fetcher {
	case "http", "browser":
	default:
		errs = append(errs, fmt.Errorf("unknown SCRAPER_FETCHER %q", c.Scraper.Fetcher))
	}
	if c.Tracker.MaxItemLimit <= 0 {
		errs = append(errs, errors.New("MAX_ITEM_LIMIT must be positive"))
	}
	if c.Tracker.CronInterval <= 0 {
		errs = append(errs, errors.New("CRON_INTERVAL must be positive"))
	}
	if c.Scraper.Workers <= 0 {
		errs = append(errs, errors.New("SCRAPER_WORKERS must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateRuntime checks the credentials needed to talk to Telegram and the LLM.
func (c *Config) ValidateRuntime() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("LLM_API_KEY is required"))
	}
	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, errors.New("TELEGRAM_WEBHOOK_URL is required in webhook mode"))
		}
		if !c.Server.Enabled {
			errs = append(errs, errors.New("webhook mode needs SERVER_ENABLED"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TELEGRAM_MODE %q", c.Telegram.Mode))
	}

	return errors.Join(errs...)
}
