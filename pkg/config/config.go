// Package config loads the pokedex configuration from defaults, an optional
// TOML/YAML file, a .env file and POKEDEX_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/client"
	"github.com/Sternrassler/pokeapi-client/pkg/coordinator"
	"github.com/Sternrassler/pokeapi-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: api.base_url is POKEDEX_API_BASE_URL.
const EnvPrefix = "POKEDEX"

// DefaultEnvFile is read when Options.EnvFile is empty. A missing file is not an error.
const DefaultEnvFile = ".env"

// Config is the full application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Browser BrowserConfig `mapstructure:"browser"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig configures the PokeAPI client.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	ItemTimeout       time.Duration `mapstructure:"item_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig configures the Redis response cache. An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisDB          int           `mapstructure:"redis_db"`
	RevalidateWindow time.Duration `mapstructure:"revalidate_window"`
}

// BrowserConfig configures the page coordinator.
type BrowserConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	TailWindow   int           `mapstructure:"tail_window"`
	FilterTarget int           `mapstructure:"filter_target"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// LogConfig configures logging. The TUI logs to File since it owns the terminal.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional config file; its extension picks the format.
	File string

	// EnvFile is the dotenv file to load, DefaultEnvFile when empty.
	EnvFile string
}

// defaults lists every key with its default value. Durations are strings so
// the starter file stays readable.
var defaults = map[string]any{
	"api.base_url":            client.DefaultBaseURL,
	"api.user_agent":          "pokeapi-client/0.1.0",
	"api.timeout":             "30s",
	"api.max_concurrency":     8,
	"api.item_timeout":        "15s",
	"api.max_retries":         3,
	"api.initial_backoff":     "500ms",
	"api.max_backoff":         "10s",
	"api.requests_per_second": 20.0,
	"api.burst":               10,
	"cache.redis_addr":        "",
	"cache.redis_db":          0,
	"cache.revalidate_window": "1h",
	"browser.page_size":       20,
	"browser.tail_window":     5,
	"browser.filter_target":   0,
	"browser.cooldown":        "1s",
	"log.level":               string(logging.LevelInfo),
	"log.pretty":              false,
	"log.file":                "pokedex.log",
	"metrics.addr":            "",
}

func defaultViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func newViper() *viper.Viper {
	v := defaultViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := newViper()
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile exports the dotenv file's variables without overriding ones
// already set in the environment.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error

	if c.API.UserAgent == "" {
		errs = append(errs, errors.New("api.user_agent is required"))
	}
	if c.API.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("api.max_retries must be >= 1 (got %d)", c.API.MaxRetries))
	}
	if c.API.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("api.max_concurrency must be >= 1 (got %d)", c.API.MaxConcurrency))
	}
	if c.Browser.PageSize < 1 || c.Browser.PageSize > client.DefaultMaxPageLimit {
		errs = append(errs, fmt.Errorf("browser.page_size must be between 1 and %d (got %d)",
			client.DefaultMaxPageLimit, c.Browser.PageSize))
	}
	if c.Browser.TailWindow < 1 {
		errs = append(errs, fmt.Errorf("browser.tail_window must be >= 1 (got %d)", c.Browser.TailWindow))
	}
	if c.Browser.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("browser.cooldown must not be negative (got %s)", c.Browser.Cooldown))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ClientConfig maps the api and cache sections onto client.Config.
// rdb may be nil to disable caching.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.API.UserAgent)
	cfg.BaseURL = c.API.BaseURL
	cfg.Timeout = c.API.Timeout
	cfg.MaxConcurrency = c.API.MaxConcurrency
	cfg.ItemTimeout = c.API.ItemTimeout
	cfg.MaxRetries = c.API.MaxRetries
	cfg.InitialBackoff = c.API.InitialBackoff
	cfg.MaxBackoff = c.API.MaxBackoff
	cfg.RequestsPerSecond = c.API.RequestsPerSecond
	cfg.Burst = c.API.Burst
	cfg.Redis = rdb
	if c.Cache.RevalidateWindow > 0 {
		cfg.RevalidateWindow = c.Cache.RevalidateWindow
	}
	return cfg
}

// CoordinatorConfig maps the browser section onto coordinator.Config.
func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		PageSize:     c.Browser.PageSize,
		TailWindow:   c.Browser.TailWindow,
		FilterTarget: c.Browser.FilterTarget,
		Cooldown:     c.Browser.Cooldown,
	}
}

// LoggingConfig maps the log section onto logging.Config writing to out.
func (c *Config) LoggingConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Pretty: c.Log.Pretty,
		Output: out,
	}
}

// RedisClient returns a client for the configured Redis, or nil when the
// cache is disabled. The caller closes it.
func (c *Config) RedisClient() *redis.Client {
	if c.Cache.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: c.Cache.RedisAddr,
		DB:   c.Cache.RedisDB,
	})
}
