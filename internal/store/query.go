package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/schema"
)

// ErrFilteringRequired matches every FilteringError.
var ErrFilteringRequired = errors.New("filtering requires ALLOW FILTERING")

// FilteringError is the rejection of a filter on columns that are neither
// the key nor indexed.
type FilteringError struct {
	Table   string
	Columns []string
}

func (e *FilteringError) Error() string {
	return fmt.Sprintf("Cannot execute this query as it might involve data filtering and thus may have "+
		"unpredictable performance. If you want to execute this query despite the performance "+
		"unpredictability, use ALLOW FILTERING (table %s, unindexed: %s)",
		e.Table, strings.Join(e.Columns, ", "))
}

// Is makes errors.Is(err, ErrFilteringRequired) hold.
func (e *FilteringError) Is(target error) bool {
	return target == ErrFilteringRequired
}

// Query runs one compiled statement.
func (s *Store) Query(ctx context.Context, stmt querycql.Statement) (engine.QueryResult, error) {
	t, ok := s.catalog.Table(stmt.Table)
	if !ok {
		return engine.QueryResult{}, errors.Newf("unconfigured table %s", stmt.Table)
	}
	if !stmt.AllowFiltering {
		if cols := unindexed(t, stmt.FilterColumns); len(cols) > 0 {
			return engine.QueryResult{}, &FilteringError{Table: t.Name, Columns: cols}
		}
	}

	query := strings.TrimSuffix(stmt.CQL, " ALLOW FILTERING")
	s.logger.Debug("sqlite query", zap.String("sql", query), zap.Int("params", len(stmt.Params)))

	rows, err := s.db.QueryContext(ctx, query, stmt.Params...)
	if err != nil {
		return engine.QueryResult{}, errors.Wrapf(err, "query %s", stmt.Table)
	}
	defer rows.Close()

	out, err := scanRows(t, rows)
	if err != nil {
		return engine.QueryResult{}, errors.Wrapf(err, "read %s", stmt.Table)
	}
	return engine.QueryResult{Rows: out}, nil
}

// IsMissingIndex reports whether err is a FilteringError.
func (s *Store) IsMissingIndex(err error) bool {
	var fe *FilteringError
	return errors.As(err, &fe)
}

// Distinct returns the distinct non-empty values of a column as strings,
// sorted.
func (s *Store) Distinct(ctx context.Context, table, column string) ([]string, error) {
	t, ok := s.catalog.Table(table)
	if !ok {
		return nil, errors.Newf("unconfigured table %s", table)
	}
	if !t.Has(column) {
		return nil, errors.Newf("table %s has no column %s", table, column)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", column, table, column))
	if err != nil {
		return nil, errors.Wrapf(err, "distinct %s.%s", table, column)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrapf(err, "scan %s.%s", table, column)
		}
		if str := strings.TrimSpace(textOf(v)); str != "" {
			out = append(out, str)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s.%s", table, column)
	}
	sort.Strings(out)
	return out, nil
}

func unindexed(t *schema.Table, cols []string) []string {
	var out []string
	for _, c := range cols {
		if c != t.Key && !t.IsIndexed(c) {
			out = append(out, c)
		}
	}
	return out
}

// scanRows reads rows into maps, converting values to the column types of
// t. A COUNT column is returned as "count".
func scanRows(t *schema.Table, rows *sql.Rows) ([]engine.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		if queryir.IsCountProjection(c) {
			names[i] = "count"
		} else {
			names[i] = strings.ToLower(c)
		}
	}

	out := []engine.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(engine.Row, len(cols))
		for i, name := range names {
			row[name] = columnValue(t, name, vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func columnValue(t *schema.Table, name string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	col, ok := t.Column(name)
	if !ok {
		return v
	}
	return schema.Cast(col.Type, v)
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// Empty reports whether every catalog table has no rows.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	for _, name := range s.catalog.TableNames() {
		var n int
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", name)).Scan(&n); err != nil {
			return false, errors.Wrapf(err, "count %s", name)
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}
