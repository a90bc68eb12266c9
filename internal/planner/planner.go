package planner

import (
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/valueindex"
)

const (
	// EntityTable is the table resolved entity filters describe.
	EntityTable = "students"

	// PreStepLimit caps the ID pool a students pre-step collects.
	PreStepLimit = 5000
)

// ErrInvalidUserID is returned when a student-scoped plan has no usable ID.
var ErrInvalidUserID = errors.New("student scope requires a numeric user id")

// Planner enhances and canonicalizes plans against a schema and a value
// catalog.
type Planner struct {
	schema *schema.Catalog
	values *valueindex.Catalog
	logger *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Planner.
func New(sc *schema.Catalog, values *valueindex.Catalog, opts ...Option) *Planner {
	p := &Planner{
		schema: sc,
		values: values,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// applies reports whether an entity filter on column belongs on a step over
// table. Filters go to the entity table when it has the column, otherwise to
// any table that has it.
func (p *Planner) applies(table *schema.Table, column string) bool {
	if !table.Has(column) {
		return false
	}
	if table.Name == EntityTable {
		return true
	}
	home, ok := p.schema.Table(EntityTable)
	return !ok || !home.Has(column)
}
