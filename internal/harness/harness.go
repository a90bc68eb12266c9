package harness

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/planner"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/resolve"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
	"github.com/roach88/planq/internal/valueindex"
)

// Harness holds the per-scenario pipeline.
type Harness struct {
	store  *store.Store
	schema *schema.Catalog
	values *valueindex.Catalog
	runIDs engine.RunIDGenerator
	logger *zap.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes pipeline logs to logger. Runs are silent by default.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database.
//
// Execution flow:
//  1. Create the database and load the fixture
//  2. Build the value catalog from the fixture's live values
//  3. Resolve the query and terms, then canonicalize the plan
//  4. Execute the plan with a fixed run ID
//  5. Check expect_error and evaluate assertions
//
// An error is returned only when the scenario itself cannot be set up.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}
	h := &Harness{
		store:  st,
		schema: st.Catalog(),
		runIDs: engine.NewFixedGenerator(runID),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.seed(ctx, scenario); err != nil {
		return nil, err
	}

	plan, err := h.prepare(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Plan = plan

	exec := engine.New(st,
		engine.WithSchema(h.schema),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(h.logger))
	res, runErr := exec.Execute(ctx, plan)
	result.recordSteps(res)
	h.checkError(scenario, runErr, result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed loads the fixture and builds the value catalog from it.
func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	fixture, err := scenario.FixtureYAML()
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if fixture != nil {
		if err := h.store.LoadFixture(ctx, fixture); err != nil {
			return fmt.Errorf("failed to load fixture: %w", err)
		}
	}

	values, err := valueindex.NewLoader(
		valueindex.WithSource(h.store),
		valueindex.WithLogger(h.logger),
	).Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to build value catalog: %w", err)
	}
	h.values = values
	return nil
}

// prepare decodes the plan and, unless the scenario is raw, canonicalizes
// it for the scenario's caller.
func (h *Harness) prepare(scenario *Scenario) (queryir.Plan, error) {
	plan, err := scenario.DecodePlan()
	if err != nil {
		return queryir.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if scenario.Raw {
		return plan, nil
	}

	ent := resolve.Entities{Filters: map[string]any{}, Operators: map[string]queryir.Operator{}}
	if scenario.Query != "" || len(scenario.Terms) > 0 {
		ent = resolve.New(h.values, resolve.WithLogger(h.logger)).Resolve(scenario.Query, scenario.Terms)
	}

	role, err := planner.ParseRole(scenario.Role)
	if err != nil {
		return queryir.Plan{}, err
	}
	p := planner.New(h.schema, h.values, planner.WithLogger(h.logger))
	plan, err = p.CanonicalizePlan(plan, ent, planner.Scope{Role: role, UserID: scenario.UserID})
	if err != nil {
		return queryir.Plan{}, fmt.Errorf("canonicalize plan: %w", err)
	}
	return plan, nil
}

// checkError compares the run's error with expect_error.
func (h *Harness) checkError(scenario *Scenario, err error, result *Result) {
	if err != nil {
		var engErr *engine.Error
		if errors.As(err, &engErr) {
			result.ErrorCode = string(engErr.Code)
		} else {
			result.ErrorCode = err.Error()
		}
	}

	switch {
	case scenario.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("run failed unexpectedly: %v", err))
	case scenario.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected error %s, got %s: %v", scenario.ExpectError, result.ErrorCode, err))
	}
}
