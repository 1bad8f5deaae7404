// Package config loads medsearch configuration from defaults, an optional
// YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport modes
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config defines server configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Transport TransportConfig `yaml:"transport"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type APIConfig struct {
	URL           string        `yaml:"url"` // Base URL including any /api prefix
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

type TransportConfig struct {
	Mode     string `yaml:"mode"` // stdio or http
	HTTPAddr string `yaml:"http_addr"`
}

type StoreConfig struct {
	Backend    string        `yaml:"backend"` // memory, sqlite or redis
	Path       string        `yaml:"path"`
	RedisURL   string        `yaml:"redis_url"`
	SessionID  string        `yaml:"session_id"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	RefreshSchedule string        `yaml:"refresh_schedule"` // cron spec; empty disables
	QueryCacheSize  int           `yaml:"query_cache_size"`
	SearchTTL       time.Duration `yaml:"search_ttl"`
	SmartSearchTTL  time.Duration `yaml:"smart_search_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used before any file or environment
// overrides
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout:       5 * time.Second,
			RetryAttempts: 2,
		},
		Transport: TransportConfig{
			Mode:     TransportStdio,
			HTTPAddr: ":8080",
		},
		Store: StoreConfig{
			Backend:    "memory",
			Path:       "medsearch.db",
			SessionTTL: 12 * time.Hour,
		},
		Cache: CacheConfig{
			TTL:            30 * time.Minute,
			QueryCacheSize: 20,
			SearchTTL:      5 * time.Minute,
			SmartSearchTTL: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables, then validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("MEDSEARCH_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MEDSEARCH_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("MEDSEARCH_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEDSEARCH_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("MEDSEARCH_API_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MEDSEARCH_API_RETRY_ATTEMPTS: %w", err)
		}
		cfg.API.RetryAttempts = n
	}
	if v := os.Getenv("MEDSEARCH_TRANSPORT"); v != "" {
		cfg.Transport.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("MEDSEARCH_HTTP_ADDR"); v != "" {
		cfg.Transport.HTTPAddr = v
	}
	if v := os.Getenv("MEDSEARCH_STORE"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MEDSEARCH_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MEDSEARCH_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("MEDSEARCH_SESSION_ID"); v != "" {
		cfg.Store.SessionID = v
	}
	if v := os.Getenv("MEDSEARCH_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEDSEARCH_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v, ok := os.LookupEnv("MEDSEARCH_REFRESH_SCHEDULE"); ok {
		cfg.Cache.RefreshSchedule = v
	}
	if v := os.Getenv("MEDSEARCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MEDSEARCH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	return nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required (MEDSEARCH_API_URL)"))
	} else if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.url %q must be an absolute http(s) URL", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RetryAttempts < 1 {
		errs = append(errs, errors.New("api.retry_attempts must be at least 1"))
	}

	switch c.Transport.Mode {
	case TransportStdio:
	case TransportHTTP:
		if c.Transport.HTTPAddr == "" {
			errs = append(errs, errors.New("transport.http_addr is required for http transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.mode %q must be stdio or http", c.Transport.Mode))
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case "redis":
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be memory, sqlite or redis", c.Store.Backend))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.QueryCacheSize < 1 {
		errs = append(errs, errors.New("cache.query_cache_size must be at least 1"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
