// Package schema describes the tables the planner and executor work with:
// column types, which columns are indexed, the key column and the default
// projection. The catalog is written in CUE and compiled at startup.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var defaultSource []byte

// ColumnType is a column's declared store type.
type ColumnType string

const (
	TypeInt     ColumnType = "int"
	TypeFloat   ColumnType = "float"
	TypeText    ColumnType = "text"
	TypeBoolean ColumnType = "boolean"
)

// Column is one column of a table.
type Column struct {
	Name        string
	Type        ColumnType
	Indexed     bool
	Description string
}

// Table is one table and its columns.
type Table struct {
	Name          string
	Key           string
	Columns       map[string]Column
	DefaultSelect []string
}

// Has reports whether the table has the column.
func (t *Table) Has(column string) bool {
	_, ok := t.Columns[column]
	return ok
}

// Column returns a column by name.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// IsIndexed reports whether the column can be filtered without a full scan.
func (t *Table) IsIndexed(column string) bool {
	return t.Columns[column].Indexed
}

// ColumnNames returns every column name, sorted.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for n := range t.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Catalog is the set of known tables.
type Catalog struct {
	tables map[string]*Table
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// TableNames returns every table name, sorted.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Owners returns the tables that have the column, sorted.
func (c *Catalog) Owners(column string) []string {
	var out []string
	for _, n := range c.TableNames() {
		if c.tables[n].Has(column) {
			out = append(out, n)
		}
	}
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the built-in catalog. It panics if the embedded schema
// does not compile, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(defaultSource, "schema.cue")
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("schema: embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// LoadError reports a problem in a schema source with its position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load compiles CUE source into a Catalog.
func Load(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &LoadError{Field: "tables", Message: "tables is required", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{tables: make(map[string]*Table)}
	for iter.Next() {
		t, err := parseTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		c.tables[t.Name] = t
	}
	if len(c.tables) == 0 {
		return nil, &LoadError{Field: "tables", Message: "at least one table is required", Pos: tablesVal.Pos()}
	}
	return c, nil
}

func parseTable(name string, v cue.Value) (*Table, error) {
	t := &Table{Name: name, Columns: make(map[string]Column)}

	key, err := v.LookupPath(cue.ParsePath("key")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t.Key = key

	colIter, err := v.LookupPath(cue.ParsePath("columns")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for colIter.Next() {
		colName := colIter.Label()
		colVal := colIter.Value()

		typ, err := colVal.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		indexed, err := colVal.LookupPath(cue.ParsePath("indexed")).Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		col := Column{Name: colName, Type: ColumnType(typ), Indexed: indexed}
		if d := colVal.LookupPath(cue.ParsePath("description")); d.Exists() {
			col.Description, _ = d.String()
		}
		t.Columns[colName] = col
	}

	keyCol, ok := t.Columns[t.Key]
	if !ok {
		return nil, &LoadError{
			Field:   name + ".key",
			Message: fmt.Sprintf("key column %q is not declared", t.Key),
			Pos:     v.Pos(),
		}
	}
	// The key is always queryable.
	keyCol.Indexed = true
	t.Columns[t.Key] = keyCol

	selIter, err := v.LookupPath(cue.ParsePath("default_select")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for selIter.Next() {
		s, err := selIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if !t.Has(s) {
			return nil, &LoadError{
				Field:   name + ".default_select",
				Message: fmt.Sprintf("unknown column %q", s),
				Pos:     selIter.Value().Pos(),
			}
		}
		t.DefaultSelect = append(t.DefaultSelect, s)
	}
	return t, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
