// Package config loads sitefront configuration from an optional .env file, an
// optional YAML file and environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sitefront/internal/cache"
	"sitefront/internal/cms"
	"sitefront/internal/leads"
	"sitefront/internal/logging"
	"sitefront/internal/render"
	"sitefront/internal/strategy"
)

// DefaultPaths are searched, in order, when Load is called without a path.
var DefaultPaths = []string{"config.yaml", "config/config.yaml"}

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	CMS     cms.Config    `yaml:"cms"`
	Leads   leads.Config  `yaml:"leads"`
	Cache   CacheConfig   `yaml:"cache"`
	Render  RenderConfig  `yaml:"render"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// AdminKey protects the cache administration endpoints. Empty leaves them open.
	AdminKey string `yaml:"admin_key"`
	SiteName string `yaml:"site_name"`
	// PublicURL prefixes canonical links in rendered pages.
	PublicURL       string        `yaml:"public_url"`
	BodySizeLimit   string        `yaml:"body_size_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig configures both cache layers, the store behind the persistent
// layer and the strategy bindings.
type CacheConfig struct {
	Memory                    cache.MemoryConfig     `yaml:"memory"`
	Persistent                cache.PersistentConfig `yaml:"persistent"`
	Store                     cache.StoreConfig      `yaml:"store"`
	MemoryCleanupInterval     time.Duration          `yaml:"memory_cleanup_interval"`
	PersistentCleanupInterval time.Duration          `yaml:"persistent_cleanup_interval"`
	// Bindings replace the default bindings when set.
	Bindings []strategy.Binding `yaml:"bindings"`
}

// RenderConfig configures the render pipeline.
type RenderConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig configures process logging.
type LogConfig struct {
	// Format is auto, pretty or json.
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Load reads configuration. path may be empty, in which case DefaultPaths are
// tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	file, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		if err := loadFile(cfg, file); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	for _, candidate := range DefaultPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// buildDefaultConfig returns the configuration used when nothing is set.
func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			SiteName:        "Sitefront",
			BodySizeLimit:   "1M",
			ShutdownTimeout: 30 * time.Second,
		},
		CMS:   cms.DefaultConfig(),
		Leads: leads.Config{Timeout: 10 * time.Second},
		Cache: CacheConfig{
			Memory: cache.MemoryConfig{
				TTL:     cache.DefaultMemoryTTL,
				MaxSize: cache.DefaultMemoryMaxSize,
				MaxAge:  cache.DefaultMemoryMaxAge,
			},
			Persistent: cache.PersistentConfig{
				TTL:    cache.DefaultPersistentTTL,
				Prefix: cache.AppPrefix,
				MaxAge: cache.DefaultPersistentMaxAge,
			},
			Store: cache.StoreConfig{
				Backend: cache.BackendFile,
				File:    cache.FileConfig{Path: cache.DefaultFilePath},
				SQLite:  cache.SQLiteConfig{Path: cache.DefaultSQLitePath},
			},
			MemoryCleanupInterval:     cache.DefaultMemoryCleanupInterval,
			PersistentCleanupInterval: cache.DefaultPersistentCleanupInterval,
			Bindings:                  strategy.DefaultBindings(),
		},
		Render: RenderConfig{Concurrency: render.DefaultConcurrency},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		Log: LogConfig{Format: logging.FormatAuto, Level: "info"},
	}
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString resolves ${VAR} and ${VAR:-default}. A variable that is unset
// or empty takes its default; without a default the placeholder is kept.
func expandString(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if parts[2] != "" {
			return parts[3]
		}
		return m
	})
}

// applyEnvOverrides applies environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.AdminKey, "SITEFRONT_ADMIN_KEY")
	setString(&cfg.Server.SiteName, "SITE_NAME")
	setString(&cfg.Server.PublicURL, "PUBLIC_URL")
	setString(&cfg.CMS.BaseURL, "CMS_BASE_URL")
	setString(&cfg.Leads.Endpoint, "LEADS_ENDPOINT")
	setString(&cfg.Cache.Store.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.Persistent.Prefix, "CACHE_PREFIX")
	setString(&cfg.Cache.Store.File.Path, "CACHE_FILE_PATH")
	setString(&cfg.Cache.Store.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Cache.Store.PostgreSQL.URL, "POSTGRES_URL")
	setString(&cfg.Cache.Store.MongoDB.URL, "MONGODB_URL")
	setString(&cfg.Cache.Store.MongoDB.Database, "MONGODB_DATABASE")
	setString(&cfg.Cache.Store.Redis.URL, "REDIS_URL")
	setString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	return errors.Join(
		setDuration(&cfg.CMS.Timeout, "CMS_TIMEOUT"),
		setDuration(&cfg.CMS.RetryDelay, "CMS_RETRY_DELAY"),
		setDuration(&cfg.Leads.Timeout, "LEADS_TIMEOUT"),
		setInt(&cfg.CMS.Retries, "CMS_RETRIES"),
		setInt(&cfg.Cache.Store.PostgreSQL.MaxConns, "POSTGRES_MAX_CONNS"),
		setInt(&cfg.Render.Concurrency, "RENDER_CONCURRENCY"),
		setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"),
	)
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

// setDuration accepts plain integers (seconds) or Go duration strings.
func setDuration(dst *time.Duration, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, val)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, val)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, val)
	}
	*dst = b
	return nil
}

// Validate reports every problem in cfg at once.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: invalid port %q", c.Server.Port))
	}
	if u, err := url.Parse(c.CMS.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("cms.base_url: must be an absolute http(s) URL, got %q", c.CMS.BaseURL))
	}
	if c.CMS.Retries < 0 {
		errs = append(errs, errors.New("cms.retries: must not be negative"))
	}
	if c.Leads.Endpoint != "" {
		if u, err := url.Parse(c.Leads.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("leads.endpoint: must be an absolute URL, got %q", c.Leads.Endpoint))
		}
	}

	errs = append(errs, c.Cache.validate()...)

	if c.Render.Concurrency < 1 {
		errs = append(errs, errors.New("render.concurrency: must be at least 1"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("metrics.endpoint: must start with /, got %q", c.Metrics.Endpoint))
	}
	switch c.Log.Format {
	case logging.FormatAuto, logging.FormatPretty, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: must be auto, pretty or json, got %q", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

func (c CacheConfig) validate() []error {
	var errs []error

	if c.Memory.MaxSize < 0 {
		errs = append(errs, errors.New("cache.memory.max_size: must not be negative"))
	}
	if c.Memory.TTL < 0 || c.Memory.MaxAge < 0 || c.Persistent.TTL < 0 || c.Persistent.MaxAge < 0 {
		errs = append(errs, errors.New("cache: ttl and max_age must not be negative"))
	}

	switch c.Store.Backend {
	case cache.BackendMemory, cache.BackendFile, cache.BackendSQLite:
	case cache.BackendPostgreSQL:
		if c.Store.PostgreSQL.URL == "" {
			errs = append(errs, errors.New("cache.store.postgresql.url: required for the postgresql backend"))
		}
	case cache.BackendMongoDB:
		if c.Store.MongoDB.URL == "" {
			errs = append(errs, errors.New("cache.store.mongodb.url: required for the mongodb backend"))
		}
	case cache.BackendRedis:
		if c.Store.Redis.URL == "" {
			errs = append(errs, errors.New("cache.store.redis.url: required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.store.backend: unknown backend %q", c.Store.Backend))
	}

	for i, b := range c.Bindings {
		if b.KeyPattern == "" {
			errs = append(errs, fmt.Errorf("cache.bindings[%d].key_pattern: required", i))
		}
		if !b.Strategy.Valid() {
			errs = append(errs, fmt.Errorf("cache.bindings[%d].strategy: unknown strategy %q", i, b.Strategy))
		}
		if b.TTL < 0 || b.StaleWindow < 0 {
			errs = append(errs, fmt.Errorf("cache.bindings[%d]: ttl and stale_window must not be negative", i))
		}
	}
	return errs
}
