// Package config loads swapi-search settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Sternrassler/swapi-search/pkg/logging"
	"github.com/Sternrassler/swapi-search/pkg/ratelimit"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog/log"
)

// Config holds every setting of the CLI and proxy server.
type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY" env-default:"false"`

	BaseURL   string `yaml:"base_url" env:"SWAPI_BASE_URL" env-default:"https://swapi.dev/api/people/"`
	UserAgent string `yaml:"user_agent" env:"USER_AGENT" env-default:"swapi-search/0.1.0"`

	// RedisAddr enables the response cache and quota. Empty disables both.
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisDB   int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`

	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"0s"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES" env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF" env-default:"1s"`

	QuotaPerWindow int           `yaml:"quota_per_window" env:"QUOTA_PER_WINDOW" env-default:"10000"`
	QuotaWindow    time.Duration `yaml:"quota_window" env:"QUOTA_WINDOW" env-default:"24h"`

	ListenAddr        string `yaml:"listen_addr" env:"LISTEN_ADDR" env-default:":8080"`
	ExportConcurrency int    `yaml:"export_concurrency" env:"EXPORT_CONCURRENCY" env-default:"4"`
}

// Load reads path if it is non-empty, then applies environment variables
// on top. A missing path is an error; use "" for environment only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is Load that exits the process on failure.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Cannot load config")
	}
	return cfg
}

// Validate checks values cleanenv cannot.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil || !u.IsAbs() {
		errs = append(errs, fmt.Errorf("base_url must be an absolute URL (got %q)", c.BaseURL))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("user_agent is required"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be >= 0 (got %s)", c.FetchTimeout))
	}
	if c.QuotaPerWindow <= 0 || c.QuotaWindow <= 0 {
		errs = append(errs, errors.New("quota_per_window and quota_window must be positive"))
	}
	if c.ExportConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("export_concurrency must be positive (got %d)", c.ExportConcurrency))
	}
	return errors.Join(errs...)
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Quota returns the request quota.
func (c Config) Quota() ratelimit.Quota {
	return ratelimit.Quota{Limit: c.QuotaPerWindow, Window: c.QuotaWindow}
}
