package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/planq/internal/engine"
)

// Insert writes rows into a table in one transaction. Values are cast to
// the column types. Every row must use known columns only.
func (s *Store) Insert(ctx context.Context, table string, rows ...engine.Row) error {
	t, ok := s.catalog.Table(table)
	if !ok {
		return errors.Newf("insert: unconfigured table %s", table)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "insert: begin")
	}
	defer tx.Rollback()

	for i, row := range rows {
		cols := make([]string, 0, len(row))
		for c := range row {
			if !t.Has(c) {
				return errors.Newf("insert: row %d: table %s has no column %s", i, table, c)
			}
			cols = append(cols, c)
		}
		sort.Strings(cols)

		args := make([]any, len(cols))
		for j, c := range cols {
			args[j] = t.Cast(c, row[c])
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "insert: row %d into %s", i, table)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "insert: commit")
	}
	return nil
}

// LoadFixture inserts rows from a YAML document mapping table names to
// lists of rows:
//
//	students:
//	  - {id: 1, name: Aisha, programme: Bachelor of Computer Science}
//	subjects:
//	  - {id: 1, subjectname: Calculus, grade: A}
//
// Tables are loaded in name order.
func (s *Store) LoadFixture(ctx context.Context, data []byte) error {
	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "parse fixture")
	}

	tables := make([]string, 0, len(doc))
	for name := range doc {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, name := range tables {
		rows := make([]engine.Row, len(doc[name]))
		for i, r := range doc[name] {
			rows[i] = r
		}
		if err := s.Insert(ctx, name, rows...); err != nil {
			return err
		}
	}
	return nil
}
