// Package cassandra runs compiled statements against a Cassandra cluster.
package cassandra

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
)

// Config describes how to reach the cluster.
type Config struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Username    string
	Password    string
	Timeout     time.Duration
	Consistency string
	PageSize    int
}

// DefaultConfig returns settings for a single local node.
func DefaultConfig() Config {
	return Config{
		Hosts:       []string{"127.0.0.1"},
		Port:        9042,
		Keyspace:    "students",
		Timeout:     10 * time.Second,
		Consistency: "LOCAL_QUORUM",
		PageSize:    5000,
	}
}

// Session is a shared, concurrency-safe connection to the cluster.
type Session struct {
	session  *gocql.Session
	pageSize int
	logger   *zap.Logger
}

// Connect opens a session.
func Connect(cfg Config, logger *zap.Logger) (*Session, error) {
	cluster, err := NewCluster(cfg)
	if err != nil {
		return nil, err
	}
	s, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", strings.Join(cfg.Hosts, ","))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("connected to cassandra",
		zap.Strings("hosts", cfg.Hosts),
		zap.String("keyspace", cfg.Keyspace))
	return &Session{session: s, pageSize: cfg.PageSize, logger: logger}, nil
}

// NewCluster builds the driver configuration.
func NewCluster(cfg Config) (*gocql.ClusterConfig, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cassandra: at least one host is required")
	}
	if cfg.Keyspace == "" {
		return nil, errors.New("cassandra: keyspace is required")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.PageSize > 0 {
		cluster.PageSize = cfg.PageSize
	}
	if cfg.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return nil, errors.Wrap(err, "cassandra: consistency")
		}
		cluster.Consistency = c
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster, nil
}

// Close closes the session.
func (s *Session) Close() {
	s.session.Close()
}

// Query runs one statement and reads every page of its result.
func (s *Session) Query(ctx context.Context, stmt querycql.Statement) (engine.QueryResult, error) {
	iter := s.session.Query(stmt.CQL, stmt.Params...).WithContext(ctx).Iter()

	out := engine.QueryResult{Rows: []engine.Row{}}
	for {
		row := make(map[string]any)
		if !iter.MapScan(row) {
			break
		}
		out.Rows = append(out.Rows, normalizeRow(row))
	}
	out.Warnings = iter.Warnings()
	if err := iter.Close(); err != nil {
		return engine.QueryResult{}, err
	}
	return out, nil
}

// IsMissingIndex reports whether the cluster refused the statement
// because it filters on an unindexed column.
func (s *Session) IsMissingIndex(err error) bool {
	return IsMissingIndex(err)
}

// IsMissingIndex reports whether err asks for ALLOW FILTERING.
func IsMissingIndex(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ALLOW FILTERING")
}

// Distinct returns the distinct non-empty values of a column as strings,
// sorted. Cassandra only supports DISTINCT on partition keys, so the column
// is read in full and deduplicated here.
func (s *Session) Distinct(ctx context.Context, table, column string) ([]string, error) {
	if !queryir.ValidIdentifier(table) || !queryir.ValidIdentifier(column) {
		return nil, errors.Newf("invalid identifier %s.%s", table, column)
	}
	q := s.session.Query("SELECT " + column + " FROM " + table).WithContext(ctx)
	if s.pageSize > 0 {
		q = q.PageSize(s.pageSize)
	}
	iter := q.Iter()

	var values []string
	for {
		row := make(map[string]any, 1)
		if !iter.MapScan(row) {
			break
		}
		values = append(values, textOf(row[column]))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "distinct %s.%s", table, column)
	}
	s.logger.Debug("distinct scan",
		zap.String("table", table),
		zap.String("column", column),
		zap.Int("rows", len(values)))
	return dedupe(values), nil
}

// normalizeRow lower-cases column names and renames COUNT results to
// "count".
func normalizeRow(row map[string]any) engine.Row {
	out := make(engine.Row, len(row))
	for k, v := range row {
		name := strings.ToLower(k)
		if name == "system.count(*)" || queryir.IsCountProjection(name) {
			name = "count"
		}
		out[name] = v
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	}
	return fmt.Sprint(v)
}
