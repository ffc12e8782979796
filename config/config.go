package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MarketplaceConfig describes the upstream marketplace API and the pacing
// and retry discipline used against it.
type MarketplaceConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Cookie     string `mapstructure:"cookie"`
	CookieFile string `mapstructure:"cookie_file"`
	UserAgent  string `mapstructure:"user_agent"`
	Currency   string `mapstructure:"currency"`

	PerPage              int `mapstructure:"per_page"`
	MaxPages             int `mapstructure:"max_pages"`
	SmallResultThreshold int `mapstructure:"small_result_threshold"`
	MaxItemAgeDays       int `mapstructure:"max_item_age_days"`

	Delay   DelayWindowConfig `mapstructure:"delay"`
	Backoff BackoffConfig     `mapstructure:"backoff"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DelayWindowConfig is the inter-page pacing window.
type DelayWindowConfig struct {
	Base      time.Duration `mapstructure:"base"`
	JitterMin float64       `mapstructure:"jitter_min"`
	JitterMax float64       `mapstructure:"jitter_max"`
	Min       time.Duration `mapstructure:"min"`
	Max       time.Duration `mapstructure:"max"`
	// RefreshTTL bounds how often the window is re-read from config.
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// BackoffConfig is the 429 retry budget.
type BackoffConfig struct {
	Base       time.Duration `mapstructure:"base"`
	Cap        time.Duration `mapstructure:"cap"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// StorageConfig contains Postgres and Redis settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig identifies the database, either via URL or discrete fields.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles the Postgres connection string.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig identifies the Redis instance used for scheduler locks and
// the match event stream. Addr empty disables both.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertsConfig tunes the alert matcher and its schedule.
type AlertsConfig struct {
	// ScheduleCron is a cron expression for recurring sweeps; empty
	// disables the scheduler.
	ScheduleCron string `mapstructure:"schedule_cron"`
	Workers      int    `mapstructure:"workers"`
	MaxPages     int    `mapstructure:"max_pages"`

	TitleOverlapThreshold float64  `mapstructure:"title_overlap_threshold"`
	TokenSetThreshold     float64  `mapstructure:"token_set_threshold"`
	Statuses              []string `mapstructure:"statuses"`
}

// LoadConfig reads configuration from the given file, or from the usual
// search paths when path is empty, applying GAMESCOUT_* environment
// overrides on top. A missing config file is fine: defaults plus
// environment carry a full setup.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("marketplace.base_url", "https://www.vinted.fr")
	viper.SetDefault("marketplace.currency", "EUR")
	viper.SetDefault("marketplace.per_page", 96)
	viper.SetDefault("marketplace.max_pages", 3)
	viper.SetDefault("marketplace.small_result_threshold", 20)
	viper.SetDefault("marketplace.max_item_age_days", 7)
	viper.SetDefault("marketplace.delay.base", "16s")
	viper.SetDefault("marketplace.delay.jitter_min", 0.8)
	viper.SetDefault("marketplace.delay.jitter_max", 1.6)
	viper.SetDefault("marketplace.delay.min", "12s")
	viper.SetDefault("marketplace.delay.max", "25s")
	viper.SetDefault("marketplace.delay.refresh_ttl", "5m")
	viper.SetDefault("marketplace.backoff.base", "5s")
	viper.SetDefault("marketplace.backoff.cap", "90s")
	viper.SetDefault("marketplace.backoff.max_retries", 4)
	viper.SetDefault("marketplace.request_timeout", "30s")
	viper.SetDefault("alerts.workers", 1)
	viper.SetDefault("alerts.max_pages", 2)
	viper.SetDefault("alerts.title_overlap_threshold", 0.75)
	viper.SetDefault("alerts.token_set_threshold", 0.5)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GAMESCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		log.Printf("[CONFIG] no config file found, using defaults and environment")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error unmarshalling config: %w", err))
	}
	return &cfg
}
