package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Cassandra.Hosts)
	assert.Equal(t, 9042, cfg.Cassandra.Port)
	assert.Equal(t, 80, cfg.Resolver.Threshold)
	assert.Equal(t, 8, cfg.Resolver.Gap)
	assert.Equal(t, 200, cfg.Executor.ChunkSize)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, 1000, cfg.Executor.MaxStatements)
	assert.Equal(t, []string{"RP"}, cfg.Catalog.ActivePrefixes)
	assert.Equal(t, "planq:", cfg.Redis.Prefix)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: cassandra
cassandra:
  hosts: [db1, db2]
  keyspace: records
  timeout: 3s
resolver:
  threshold: 85
redis:
  addr: localhost:6379
  ttl: 1h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendCassandra, cfg.Store.Backend)
	cass := cfg.CassandraSettings()
	assert.Equal(t, []string{"db1", "db2"}, cass.Hosts)
	assert.Equal(t, "records", cass.Keyspace)
	assert.Equal(t, 3*time.Second, cass.Timeout)
	assert.Equal(t, 85, cfg.Resolver.Threshold)
	assert.Equal(t, 8, cfg.Resolver.Gap, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "localhost:6379", cfg.RedisSettings().Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  workers: 2\n"), 0o644))
	t.Setenv("PLANQ_EXECUTOR_WORKERS", "8")
	t.Setenv("PLANQ_SQLITE_PATH", "/tmp/other.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, "/tmp/other.db", cfg.SQLite.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"backend", func(c *Config) { c.Store.Backend = "postgres" }, "store.backend must be cassandra or sqlite"},
		{"threshold", func(c *Config) { c.Resolver.Threshold = 120 }, "resolver.threshold"},
		{"gap", func(c *Config) { c.Resolver.Gap = -1 }, "resolver.gap"},
		{"chunk size", func(c *Config) { c.Executor.ChunkSize = 0 }, "executor.chunk_size"},
		{"workers", func(c *Config) { c.Executor.Workers = 0 }, "executor.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.edit(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
