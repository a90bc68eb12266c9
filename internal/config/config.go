// Package config loads planq settings from a YAML file and PLANQ_*
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/roach88/planq/internal/cache"
	"github.com/roach88/planq/internal/cassandra"
)

// Backends accepted for store.backend.
const (
	BackendCassandra = "cassandra"
	BackendSQLite    = "sqlite"
)

// Config is the full configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Log       LogConfig       `mapstructure:"log"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type CassandraConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Consistency string        `mapstructure:"consistency"`
	PageSize    int           `mapstructure:"page_size"`
}

type SQLiteConfig struct {
	Path    string `mapstructure:"path"`
	Fixture string `mapstructure:"fixture"`
}

// RedisConfig is optional. An empty Addr disables the snapshot cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ResolverConfig struct {
	Threshold int `mapstructure:"threshold"`
	Gap       int `mapstructure:"gap"`
}

type ExecutorConfig struct {
	ChunkSize     int `mapstructure:"chunk_size"`
	Workers       int `mapstructure:"workers"`
	MaxStatements int `mapstructure:"max_statements"`
}

type CatalogConfig struct {
	FallbackFile   string   `mapstructure:"fallback_file"`
	ActivePrefixes []string `mapstructure:"active_prefixes"`
}

type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	cass := cassandra.DefaultConfig()

	v.SetDefault("store.backend", BackendSQLite)

	v.SetDefault("cassandra.hosts", cass.Hosts)
	v.SetDefault("cassandra.port", cass.Port)
	v.SetDefault("cassandra.keyspace", cass.Keyspace)
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")
	v.SetDefault("cassandra.timeout", cass.Timeout)
	v.SetDefault("cassandra.consistency", cass.Consistency)
	v.SetDefault("cassandra.page_size", cass.PageSize)

	v.SetDefault("sqlite.path", "planq.db")
	v.SetDefault("sqlite.fixture", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", cache.DefaultPrefix)
	v.SetDefault("redis.ttl", cache.DefaultSnapshotTTL)

	v.SetDefault("resolver.threshold", 80)
	v.SetDefault("resolver.gap", 8)

	v.SetDefault("executor.chunk_size", 200)
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.max_statements", 1000)

	v.SetDefault("catalog.fallback_file", "")
	v.SetDefault("catalog.active_prefixes", []string{"RP"})

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}

// New returns a viper instance with defaults and PLANQ_ environment
// binding. PLANQ_CASSANDRA_HOSTS overrides cassandra.hosts.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PLANQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads path (if not empty) over the defaults and environment and
// validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a configured viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendCassandra, BackendSQLite:
	default:
		return errors.Newf("store.backend must be %s or %s, got %q", BackendCassandra, BackendSQLite, c.Store.Backend)
	}
	if c.Resolver.Threshold < 0 || c.Resolver.Threshold > 100 {
		return errors.Newf("resolver.threshold must be within 0..100, got %d", c.Resolver.Threshold)
	}
	if c.Resolver.Gap < 0 {
		return errors.Newf("resolver.gap must not be negative, got %d", c.Resolver.Gap)
	}
	if c.Executor.ChunkSize <= 0 {
		return errors.Newf("executor.chunk_size must be positive, got %d", c.Executor.ChunkSize)
	}
	if c.Executor.Workers <= 0 {
		return errors.Newf("executor.workers must be positive, got %d", c.Executor.Workers)
	}
	return nil
}

// CassandraSettings converts to the driver package's config.
func (c *Config) CassandraSettings() cassandra.Config {
	return cassandra.Config{
		Hosts:       c.Cassandra.Hosts,
		Port:        c.Cassandra.Port,
		Keyspace:    c.Cassandra.Keyspace,
		Username:    c.Cassandra.Username,
		Password:    c.Cassandra.Password,
		Timeout:     c.Cassandra.Timeout,
		Consistency: c.Cassandra.Consistency,
		PageSize:    c.Cassandra.PageSize,
	}
}

// RedisSettings converts to the cache package's config.
func (c *Config) RedisSettings() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}
