// Package config handles loading and managing shelfwatch configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidDriver is returned for an unknown database driver.
	ErrInvalidDriver = errors.New("invalid database driver")
	// ErrInvalidCacheBackend is returned for an unknown cache backend.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrInvalidArchiveBackend is returned for an unknown archive backend.
	ErrInvalidArchiveBackend = errors.New("invalid archive backend")
	// ErrMissingValue is returned when a required setting is empty.
	ErrMissingValue = errors.New("missing required value")
)

// Config is the top-level configuration for shelfwatch.
type Config struct {
	Logging  string         `yaml:"logging" default:"info"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Feed     FeedConfig     `yaml:"feed"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver" default:"postgres"` // postgres, pgx or sqlite
	DSN    string `yaml:"dsn"`                       // sqlite defaults to a file under CacheDir
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend" default:"memory"` // memory or redis
	MaxEntries int         `yaml:"max_entries" default:"0"`  // memory only, 0 = unbounded
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the shared Redis cache backend.
type RedisConfig struct {
	Address  string        `yaml:"address" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" default:"0"`
	Prefix   string        `yaml:"prefix" default:"shelfwatch:cache:"`
	TTL      time.Duration `yaml:"ttl" default:"0s"` // 0 = entries live until the next flush
}

// FeedConfig controls downloading the daily export.
type FeedConfig struct {
	URL          string        `yaml:"url" default:"https://abc2.nc.gov/StoresBoards/ExportExcel"`
	Timeout      time.Duration `yaml:"timeout" default:"2m"`
	Schedule     string        `yaml:"schedule" default:"0 6 * * *"` // cron, empty disables the daily run
	ValidateRows int           `yaml:"validate_rows" default:"35"`
}

// ArchiveConfig selects where raw feeds are kept.
type ArchiveConfig struct {
	Backend  string   `yaml:"backend" default:"local"` // local, s3 or gcs
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
	GCS      struct {
		Bucket string `yaml:"bucket"`
	} `yaml:"gcs"`
}

// S3Config configures the S3 archive backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ServerConfig controls the HTTP daemon.
type ServerConfig struct {
	Addr            string        `yaml:"addr" default:":8080"`
	APIKey          string        `yaml:"api_key"`
	MetricsAddr     string        `yaml:"metrics_addr"` // empty serves /metrics on Addr
	CORSOrigin      string        `yaml:"cors_origin" default:"*"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads a config file from the given path, then applies environment
// overrides. If the file does not exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and required values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn", ErrMissingValue)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("%w: cache.redis.address", ErrMissingValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.Cache.Backend)
	}

	switch c.Archive.Backend {
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("%w: archive.local_dir", ErrMissingValue)
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("%w: archive.s3.bucket", ErrMissingValue)
		}
	case "gcs":
		if c.Archive.GCS.Bucket == "" {
			return fmt.Errorf("%w: archive.gcs.bucket", ErrMissingValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidArchiveBackend, c.Archive.Backend)
	}
	return nil
}

// applyEnv overrides file settings with SHELFWATCH_* variables and PORT.
func (c *Config) applyEnv() error {
	envOverride(&c.Database.Driver, "SHELFWATCH_DATABASE_DRIVER")
	envOverride(&c.Database.DSN, "SHELFWATCH_DATABASE_DSN")
	envOverride(&c.Feed.URL, "SHELFWATCH_FEED_URL")
	envOverride(&c.Server.APIKey, "SHELFWATCH_API_KEY")
	envOverride(&c.Logging, "SHELFWATCH_LOG_LEVEL")
	if v := os.Getenv("SHELFWATCH_REDIS_ADDR"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Address = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Addr = ":" + v
	}
	return nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) fillPaths() {
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(CacheDir(), "shelfwatch.db")
	}
	if c.Archive.Backend == "local" && c.Archive.LocalDir == "" {
		c.Archive.LocalDir = CacheDir()
	}
}

// FindConfigFile looks for .shelfwatch/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".shelfwatch", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the local data directory, ~/.cache/shelfwatch.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "shelfwatch")
}
