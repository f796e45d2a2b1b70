// Package config centralizes how the tracker reads its settings and exposes
// them as strongly typed Go values. Values come from built-in defaults, then an
// optional TOML file named by TRACKER_CONFIG, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"

	"github.com/dharsanguruparan/InstallTracker/internal/logging"
)

// Mode selects which catalog and blob store implementations are wired.
type Mode string

const (
	// ModeLocal keeps records in a key-value file and documents in a
	// directory. Single user, no change notifications.
	ModeLocal Mode = "local"
	// ModeRemote uses PostgreSQL for records and an S3 bucket for documents.
	ModeRemote Mode = "remote"
)

// Config represents runtime configuration for the server, worker and CLI.
type Config struct {
	Address       string `toml:"address"`
	Mode          Mode   `toml:"mode"`
	DataDir       string `toml:"data_dir"`
	PublicBaseURL string `toml:"public_base_url"`
	Bucket        string `toml:"bucket"`
	MaxFileSize   string `toml:"max_file_size"`
	WatchDocs     bool   `toml:"watch_docs"`

	DatabaseURL string `toml:"database_url"`

	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Region    string `toml:"s3_region"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`

	RedisAddr         string `toml:"redis_addr"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
	Workers           int    `toml:"workers"`
	ReconcileSchedule string `toml:"reconcile_schedule"`

	ShutdownTimeout time.Duration  `toml:"-"`
	Logging         logging.Config `toml:"logging"`

	maxFileBytes int64
}

const (
	// EnvConfigFile names an optional TOML file layered under the env vars.
	EnvConfigFile = "TRACKER_CONFIG"

	defaultAddress           = ":8080"
	defaultDataDir           = ".data"
	defaultPublicBaseURL     = "http://localhost:8080"
	defaultBucket            = "hyros-docs"
	defaultMaxFileSize       = "10MB"
	defaultRegion            = "us-east-1"
	defaultRedisAddr         = "localhost:6379"
	defaultWorkers           = 2
	defaultReconcileSchedule = "@every 30m"
	defaultShutdownTimeout   = 5 * time.Second
)

// Load reads configuration falling back to defaults. It returns an error
// when the TOML file cannot be parsed or the result is invalid.
func Load() (*Config, error) {
	cfg := defaults()
	if path := readEnv(EnvConfigFile, ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		Address:           defaultAddress,
		Mode:              ModeLocal,
		DataDir:           defaultDataDir,
		PublicBaseURL:     defaultPublicBaseURL,
		Bucket:            defaultBucket,
		MaxFileSize:       defaultMaxFileSize,
		S3Region:          defaultRegion,
		RedisAddr:         defaultRedisAddr,
		Workers:           defaultWorkers,
		ReconcileSchedule: defaultReconcileSchedule,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
	cfg.Logging.Defaults()
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// Unmarshal only overwrites keys present in the file, so defaults survive.
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Address = readEnv("TRACKER_ADDRESS", c.Address)
	c.Mode = Mode(strings.ToLower(readEnv("TRACKER_MODE", string(c.Mode))))
	c.DataDir = readEnv("TRACKER_DATA_DIR", c.DataDir)
	c.PublicBaseURL = readEnv("TRACKER_PUBLIC_BASE_URL", c.PublicBaseURL)
	c.Bucket = readEnv("TRACKER_BUCKET", c.Bucket)
	c.MaxFileSize = readEnv("TRACKER_MAX_FILE_SIZE", c.MaxFileSize)
	c.WatchDocs = parseBool("TRACKER_WATCH_DOCS", c.WatchDocs)

	c.DatabaseURL = readEnv("TRACKER_DATABASE_URL", c.DatabaseURL)

	c.S3Endpoint = readEnv("TRACKER_S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = readEnv("TRACKER_S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = readEnv("TRACKER_S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = readEnv("TRACKER_S3_REGION", c.S3Region)
	c.S3UseSSL = parseBool("TRACKER_S3_USE_SSL", c.S3UseSSL)

	c.RedisAddr = readEnv("TRACKER_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = readEnv("TRACKER_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = parseInt("TRACKER_REDIS_DB", c.RedisDB)
	c.Workers = parseInt("TRACKER_WORKERS", c.Workers)
	c.ReconcileSchedule = readEnv("TRACKER_RECONCILE_SCHEDULE", c.ReconcileSchedule)
	c.ShutdownTimeout = parseDuration("TRACKER_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Logging.Level = logging.Level(readEnv("TRACKER_LOG_LEVEL", string(c.Logging.Level)))
	c.Logging.Format = logging.Format(readEnv("TRACKER_LOG_FORMAT", string(c.Logging.Format)))
}

// Validate checks cross-field rules and resolves derived values.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal:
		if c.DataDir == "" {
			return errors.New("data_dir required in local mode")
		}
	case ModeRemote:
		if c.DatabaseURL == "" {
			return errors.New("database_url required in remote mode")
		}
		if c.S3Endpoint == "" {
			return errors.New("s3_endpoint required in remote mode")
		}
	default:
		return fmt.Errorf("invalid mode %q (must be local or remote)", c.Mode)
	}
	if c.Bucket == "" {
		return errors.New("bucket required")
	}
	size, err := units.FromHumanSize(c.MaxFileSize)
	if err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	if size <= 0 {
		return errors.New("max_file_size must be positive")
	}
	c.maxFileBytes = size
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return c.Logging.Validate()
}

// MaxFileBytes returns the parsed upload limit.
func (c *Config) MaxFileBytes() int64 {
	return c.maxFileBytes
}

func readEnv(key, def string) string {
	// LookupEnv returns (value, true) when the variable is present.
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
