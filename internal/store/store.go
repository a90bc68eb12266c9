package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/schema"
)

// Store runs compiled statements against SQLite.
type Store struct {
	db      *sql.DB
	catalog *schema.Catalog
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCatalog sets the table catalog. Defaults to schema.Default().
func WithCatalog(c *schema.Catalog) Option {
	return func(s *Store) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open creates or opens a SQLite database at the given path and creates
// the catalog's tables and indexes.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply pragmas")
	}

	s := NewWithDB(db, opts...)
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create tables")
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Tables are not created.
func NewWithDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		catalog: schema.Default(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Catalog returns the table catalog the store enforces.
func (s *Store) Catalog() *schema.Catalog {
	return s.catalog
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}
	return nil
}

// createTables creates every catalog table plus an index on its key and
// on each indexed column.
func (s *Store) createTables() error {
	for _, stmt := range DDL(s.catalog) {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "execute %q", stmt)
		}
	}
	return nil
}

var sqlTypes = map[schema.ColumnType]string{
	schema.TypeInt:     "INTEGER",
	schema.TypeFloat:   "REAL",
	schema.TypeText:    "TEXT",
	schema.TypeBoolean: "BOOLEAN",
}

// DDL returns the statements that create the catalog's tables. Tables come
// in name order and columns in column-name order.
func DDL(c *schema.Catalog) []string {
	var out []string
	for _, name := range c.TableNames() {
		t, _ := c.Table(name)
		cols := t.ColumnNames()
		defs := make([]string, len(cols))
		for i, col := range cols {
			def, _ := t.Column(col)
			defs[i] = fmt.Sprintf("%s %s", col, sqlTypes[def.Type])
		}
		out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", ")))

		for _, col := range cols {
			if col == t.Key || t.IsIndexed(col) {
				out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", name, col, name, col))
			}
		}
	}
	return out
}
