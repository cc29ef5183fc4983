package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

const (
	// EnvPrefix prefixes environment variable overrides, e.g.
	// UPTIMEOOR_DATABASE_DRIVER.
	EnvPrefix = "UPTIMEOOR"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabaseDriver is the default database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite database file.
	DefaultSQLitePath = "./uptimeoor.db"

	// DefaultPostgresPort is the default PostgreSQL port.
	DefaultPostgresPort = 5432

	// DefaultCachePrefix is the default Redis key prefix.
	DefaultCachePrefix = "uptimeoor:"

	// DefaultCacheTTL is the default lifetime of cached entities.
	DefaultCacheTTL = "10m"

	// DefaultMaxPackageSize is the default upper bound for package files.
	DefaultMaxPackageSize = "10MB"

	// DefaultStoragePrefix is the default key prefix for package files.
	DefaultStoragePrefix = "packages"
)

// Config is the root configuration for uptimeoor.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Cache    CacheConfig    `yaml:"cache,omitempty" mapstructure:"cache"`
	Storage  StorageConfig  `yaml:"storage,omitempty" mapstructure:"storage"`
	Buckets  BucketsConfig  `yaml:"buckets,omitempty" mapstructure:"buckets"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	)
}

// CacheConfig configures the Redis entity cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	TTL      string `yaml:"ttl,omitempty" mapstructure:"ttl"`
}

// TTLDuration returns the parsed cache TTL.
func (c *CacheConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("parsing cache ttl %q: %w", c.TTL, err)
	}

	return d, nil
}

// StorageConfig configures where package-file payloads are kept.
// Only one backend (S3 or local) may be enabled at a time.
type StorageConfig struct {
	MaxPackageSize string              `yaml:"max_package_size,omitempty" mapstructure:"max_package_size"`
	Prefix         string              `yaml:"prefix,omitempty" mapstructure:"prefix"`
	Local          *LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3             *S3StorageConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// MaxPackageBytes returns the parsed package size limit.
func (c *StorageConfig) MaxPackageBytes() (int64, error) {
	n, err := units.FromHumanSize(c.MaxPackageSize)
	if err != nil {
		return 0, fmt.Errorf("parsing max_package_size %q: %w", c.MaxPackageSize, err)
	}

	return n, nil
}

// LocalStorageConfig keeps package files on the local filesystem.
type LocalStorageConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// S3StorageConfig keeps package files in an S3-compatible bucket.
type S3StorageConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// BucketsConfig selects which bucket sizes the ingester maintains.
type BucketsConfig struct {
	Sizes []string `yaml:"sizes,omitempty" mapstructure:"sizes"`
}

// ParsedSizes returns the configured bucket sizes.
func (c *BucketsConfig) ParsedSizes() ([]models.BucketSize, error) {
	sizes := make([]models.BucketSize, 0, len(c.Sizes))

	for _, s := range c.Sizes {
		size, err := models.ParseBucketSize(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}

		sizes = append(sizes, size)
	}

	return sizes, nil
}

// Load reads one or more configuration files, later files overriding
// earlier ones, then applies UPTIMEOOR_* environment overrides and
// defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for i, path := range paths {
		v.SetConfigFile(path)

		read := v.MergeInConfig
		if i == 0 {
			read = v.ReadInConfig
		}

		if err := read(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := bindEnvs(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, fmt.Errorf("binding env overrides: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// bindEnvs registers every mapstructure key so AutomaticEnv can override
// keys that are absent from the file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct {
			if err := bindEnvs(v, ft, key); err != nil {
				return err
			}

			continue
		}

		if err := v.BindEnv(key); err != nil {
			return err
		}
	}

	return nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}

	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultPostgresPort
	}

	if c.Cache.Prefix == "" {
		c.Cache.Prefix = DefaultCachePrefix
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = DefaultCacheTTL
	}

	if c.Storage.MaxPackageSize == "" {
		c.Storage.MaxPackageSize = DefaultMaxPackageSize
	}

	if c.Storage.Prefix == "" {
		c.Storage.Prefix = DefaultStoragePrefix
	}

	if len(c.Buckets.Sizes) == 0 {
		c.Buckets.Sizes = make([]string, 0, len(models.AllBucketSizes))
		for _, size := range models.AllBucketSizes {
			c.Buckets.Sizes = append(c.Buckets.Sizes, string(size))
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Cache.Enabled {
		if c.Cache.Address == "" {
			return fmt.Errorf("cache.address is required when the cache is enabled")
		}

		if ttl, err := c.Cache.TTLDuration(); err != nil {
			return err
		} else if ttl <= 0 {
			return fmt.Errorf("cache.ttl must be positive")
		}
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if _, err := c.Buckets.ParsedSizes(); err != nil {
		return fmt.Errorf("buckets.sizes: %w", err)
	}

	return nil
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	if n, err := c.MaxPackageBytes(); err != nil {
		return err
	} else if n <= 0 {
		return fmt.Errorf("storage.max_package_size must be positive")
	}

	localEnabled := c.Local != nil && c.Local.Enabled
	s3Enabled := c.S3 != nil && c.S3.Enabled

	if localEnabled && s3Enabled {
		return fmt.Errorf("cannot enable both storage.local and storage.s3")
	}

	if localEnabled && c.Local.Dir == "" {
		return fmt.Errorf("storage.local.dir is required")
	}

	if s3Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required")
	}

	return nil
}

// IsConfigured reports whether a package storage backend is enabled.
func (c *StorageConfig) IsConfigured() bool {
	return (c.Local != nil && c.Local.Enabled) || (c.S3 != nil && c.S3.Enabled)
}
