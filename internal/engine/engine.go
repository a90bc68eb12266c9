package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/schema"
)

// DefaultWorkers is the default number of chunk sub-queries in flight per
// step.
const DefaultWorkers = 4

// Executor runs plans step by step against a Session.
//
// Thread-safety model:
//   - Execute(): safe from any goroutine; each call owns its plan state
//   - chunk sub-queries of one step run concurrently on the shared Session
//
// INVARIANTS:
//   - steps run strictly in plan order
//   - a plan that fails validation issues zero statements
//   - at most one full-scan retry per statement
type Executor struct {
	session  Session
	schema   *schema.Catalog
	compiler *querycql.Compiler
	runIDs   RunIDGenerator
	logger   *zap.Logger

	chunkSize     int
	workers       int
	maxStatements int
}

// Option configures an Executor.
type Option func(*Executor)

// WithChunkSize sets the maximum IN-list length per statement.
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithWorkers sets how many chunk sub-queries of a step run at once.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxStatements sets the statement budget per plan. Zero disables it.
func WithMaxStatements(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.maxStatements = n
		}
	}
}

// WithSchema validates plans against a table catalog. Without it only the
// plan's shape is validated.
func WithSchema(c *schema.Catalog) Option {
	return func(e *Executor) {
		e.schema = c
	}
}

// WithRunIDGenerator sets the run ID source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Executor) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Executor over session.
func New(session Session, opts ...Option) *Executor {
	e := &Executor{
		session:       session,
		compiler:      querycql.NewCompiler(),
		runIDs:        UUIDv7Generator{},
		logger:        zap.NewNop(),
		chunkSize:     querycql.DefaultChunkSize,
		workers:       DefaultWorkers,
		maxStatements: DefaultMaxStatements,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every step of plan in order.
//
// A plan that fails validation returns a MALFORMED_PLAN error and no
// result. Otherwise the returned PlanResult has one Result per step, even
// when an error is returned: a store failure fails its step, aborts the
// steps linked from it and is returned as a STORE_QUERY error after the
// remaining steps have run. A QUOTA_EXCEEDED error stops the plan.
func (e *Executor) Execute(ctx context.Context, plan queryir.Plan) (*PlanResult, error) {
	if res := queryir.Validate(plan, e.schema); !res.Valid {
		return nil, NewMalformedPlanError(-1, res.Err())
	}

	runID := e.runIDs.Generate()
	log := e.logger.With(zap.String("run_id", runID))
	log.Debug("executing plan", zap.String("intent", plan.Intent), zap.Int("steps", len(plan.Steps)))

	out := &PlanResult{RunID: runID, Steps: make([]Result, len(plan.Steps))}
	for i, step := range plan.Steps {
		out.Steps[i] = Result{Step: i, Table: step.Table, Rows: []Row{}}
		out.Steps[i].setState(StatePending)
		for _, w := range step.Warnings {
			out.Steps[i].warn(w)
		}
	}

	quota := NewQuotaEnforcer(e.maxStatements)
	var firstErr error
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		err := e.runStep(ctx, log, quota, step, out.Steps[:i+1])
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if IsQuotaError(err) {
			for j := i + 1; j < len(out.Steps); j++ {
				out.Steps[j].setState(StateAborted)
				out.Steps[j].warn("not run: statement budget exhausted")
			}
			break
		}
	}
	return out, firstErr
}
