package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/schema"
)

var errMissingIndex = errors.New("Cannot execute this query as it might involve data filtering and thus may have unpredictable performance. If you want to execute this query despite the performance unpredictability, use ALLOW FILTERING")

// fakeSession records every statement and answers with handler.
type fakeSession struct {
	mu      sync.Mutex
	calls   []querycql.Statement
	handler func(stmt querycql.Statement) (QueryResult, error)
}

func (f *fakeSession) Query(_ context.Context, stmt querycql.Statement) (QueryResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, stmt)
	f.mu.Unlock()
	if f.handler == nil {
		return QueryResult{}, nil
	}
	return f.handler(stmt)
}

func (f *fakeSession) IsMissingIndex(err error) bool {
	return errors.Is(err, errMissingIndex)
}

func (f *fakeSession) callsFor(table string) []querycql.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []querycql.Statement
	for _, c := range f.calls {
		if c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

func newTestExecutor(s Session, opts ...Option) *Executor {
	opts = append([]Option{WithRunIDGenerator(NewFixedGenerator("run-1"))}, opts...)
	return New(s, opts...)
}

// idRows returns n student rows with ids 1..n.
func idRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{"id": int64(i + 1)}
	}
	return rows
}

func TestExecute_SingleStep(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: []Row{{"id": int64(1), "name": "Aisha"}}, Warnings: []string{"slow query"}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id", "name"},
		Where:  map[string]queryir.Condition{"cohort": queryir.Eq("202301")},
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	final := res.Final()
	require.NotNil(t, final)
	assert.Equal(t, StateDone, final.State)
	assert.Equal(t, []Row{{"id": int64(1), "name": "Aisha"}}, final.Rows)
	assert.Equal(t, []string{"slow query"}, final.Warnings)
	assert.Equal(t, []string{"SELECT id, name FROM students WHERE cohort = ?"}, res.Statements())
}

func TestExecute_MissingIndexRetriedOnce(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if !stmt.AllowFiltering {
			return QueryResult{}, errMissingIndex
		}
		return QueryResult{Rows: []Row{{"id": int64(7)}}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id"},
		Where:  map[string]queryir.Condition{"gender": queryir.Eq("Female")},
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, session.calls, 2)
	assert.False(t, session.calls[0].AllowFiltering)
	assert.True(t, strings.HasSuffix(session.calls[1].CQL, " ALLOW FILTERING"))
	final := res.Final()
	assert.True(t, final.Retried)
	assert.Equal(t, StateDone, final.State)
	assert.Equal(t, []StepState{StatePending, StateExecuting, StateRetryWithFullScan, StateDone}, final.History)
	assert.Len(t, final.Statements, 2)
	assert.Equal(t, []string{
		"UNSUPPORTED_SCAN: retried with full scan: SELECT id FROM students WHERE gender = ?",
	}, final.Warnings)
}

func TestExecute_SecondRejectionIsStoreQueryError(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{}, errMissingIndex
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id"},
		Where:  map[string]queryir.Condition{"gender": queryir.Eq("Female")},
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.Error(t, err)

	assert.True(t, IsStoreQueryError(err))
	assert.ErrorIs(t, err, errMissingIndex)
	stmt, ok := StatementOf(err)
	require.True(t, ok)
	assert.Equal(t, "SELECT id FROM students WHERE gender = ? ALLOW FILTERING", stmt)
	assert.Len(t, session.calls, 2, "exactly one retry")
	assert.Equal(t, StateFailed, res.Final().State)
	assert.Equal(t, []StepState{StatePending, StateExecuting, StateRetryWithFullScan, StateFailed}, res.Final().History)
}

func TestExecute_FullScanStepIsNotRetried(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{}, errMissingIndex
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:         "students",
		Select:        []string{"id"},
		Where:         map[string]queryir.Condition{"gender": queryir.Eq("Female")},
		AllowFullScan: true,
	}}}

	_, err := newTestExecutor(session).Execute(context.Background(), plan)

	assert.True(t, IsStoreQueryError(err))
	assert.Len(t, session.calls, 1)
}

func TestExecute_MalformedPlanIssuesNoQueries(t *testing.T) {
	testCases := []struct {
		name string
		step queryir.Step
	}{
		{
			name: "between arity",
			step: queryir.Step{
				Table:  "students",
				Select: []string{"id"},
				Where: map[string]queryir.Condition{
					"overallcgpa": {Op: queryir.OpBetween, Value: []any{2.0, 3.0, 4.0}},
				},
			},
		},
		{name: "star select", step: queryir.Step{Table: "students", Select: []string{"*"}}},
		{name: "empty select", step: queryir.Step{Table: "students"}},
		{name: "zero limit", step: queryir.Step{Table: "students", Select: []string{"id"}, Limit: queryir.Ptr(0)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session := &fakeSession{}

			res, err := newTestExecutor(session).Execute(context.Background(), queryir.Plan{Steps: []queryir.Step{tc.step}})

			assert.Nil(t, res)
			assert.True(t, IsMalformedPlanError(err))
			assert.Empty(t, session.calls)
		})
	}
}

func TestExecute_SchemaValidation(t *testing.T) {
	session := &fakeSession{}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "lecturers",
		Select: []string{"id"},
	}}}

	_, err := newTestExecutor(session, WithSchema(schema.Default())).Execute(context.Background(), plan)

	assert.True(t, IsMalformedPlanError(err))
	assert.Empty(t, session.calls)
}

func TestExecute_EmptyPoolSkipsLinkedStep(t *testing.T) {
	session := &fakeSession{}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}, Where: map[string]queryir.Condition{"cohort": queryir.Eq("209912")}},
		{Table: "subjects", Select: []string{"grade"}, LinkFromStep: queryir.Ptr(0)},
	}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, session.calls, 1)
	assert.Empty(t, session.callsFor("subjects"))
	assert.Equal(t, StateSkipped, res.Steps[1].State)
	assert.Equal(t, []StepState{StatePending, StateSkipped}, res.Steps[1].History)
	assert.Empty(t, res.Steps[1].Rows)
	assert.NotNil(t, res.Steps[1].Rows)
}

func TestExecute_CountOverChunkedPoolIsSummed(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" {
			return QueryResult{Rows: idRows(450)}, nil
		}
		return QueryResult{Rows: []Row{{"count": int64(len(stmt.Params))}}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{Table: "subjects", Select: []string{"COUNT(*)"}, LinkFromStep: queryir.Ptr(0)},
	}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	sub := session.callsFor("subjects")
	require.Len(t, sub, 3)
	final := res.Final()
	require.NotNil(t, final.Count)
	assert.Equal(t, int64(450), *final.Count)
	assert.Empty(t, final.Rows)
	assert.Len(t, final.Statements, 3)
}

func TestExecute_ChunkRowsMergedInOrder(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" {
			return QueryResult{Rows: idRows(450)}, nil
		}
		rows := make([]Row, 0, len(stmt.Params))
		for _, p := range stmt.Params {
			rows = append(rows, Row{"id": p, "grade": "A"})
		}
		return QueryResult{Rows: rows}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{Table: "subjects", Select: []string{"id", "grade"}, LinkFromStep: queryir.Ptr(0)},
	}}

	res, err := newTestExecutor(session, WithWorkers(4)).Execute(context.Background(), plan)
	require.NoError(t, err)

	rows := res.Final().Rows
	require.Len(t, rows, 450)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row["id"])
	}
}

func TestExecute_CustomChunkSize(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" {
			return QueryResult{Rows: idRows(25)}, nil
		}
		return QueryResult{}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{Table: "subjects", Select: []string{"grade"}, LinkFromStep: queryir.Ptr(0)},
	}}

	_, err := newTestExecutor(session, WithChunkSize(10)).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, session.callsFor("subjects"), 3)
}

func TestExecute_PoolIntersectsExistingLinkCondition(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" {
			return QueryResult{Rows: []Row{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(2)}, {"id": int64(3)}}}, nil
		}
		return QueryResult{}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{
			Table:        "subjects",
			Select:       []string{"grade"},
			Where:        map[string]queryir.Condition{"id": queryir.Eq(2)},
			LinkFromStep: queryir.Ptr(0),
		},
	}}

	_, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	sub := session.callsFor("subjects")
	require.Len(t, sub, 1)
	assert.Equal(t, "SELECT grade FROM subjects WHERE id IN (?)", sub[0].CQL)
	assert.Equal(t, []any{int64(2)}, sub[0].Params)
}

func TestExecute_PoolOutsideLinkConditionSkips(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: idRows(3)}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{
			Table:        "subjects",
			Select:       []string{"grade"},
			Where:        map[string]queryir.Condition{"id": queryir.Eq(42)},
			LinkFromStep: queryir.Ptr(0),
		},
	}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Empty(t, session.callsFor("subjects"))
	assert.Equal(t, StateSkipped, res.Final().State)
}

func TestExecute_PostFiltersOffsetAndLimit(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: []Row{
			{"id": int64(1), "name": "Tan Wei", "gender": "Male"},
			{"id": int64(2), "name": "Nur Tan", "gender": "Female"},
			{"id": int64(3), "name": "Tanya", "gender": nil},
			{"id": int64(4), "name": "Bob", "gender": "Female"},
			{"id": int64(5), "name": "Stan", "gender": "Female"},
			{"id": int64(6), "name": "TANAKA", "gender": "Female"},
		}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id", "name"},
		Where: map[string]queryir.Condition{
			"gender": {Op: queryir.OpNE, Value: "Male"},
			"name":   {Op: queryir.OpLike, Value: "%tan%"},
		},
		Offset: queryir.Ptr(1),
		Limit:  queryir.Ptr(2),
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	stmt := session.calls[0]
	assert.Equal(t, "SELECT id, name, gender FROM students", stmt.CQL, "no LIMIT with post-filters")
	final := res.Final()
	assert.Equal(t, []Row{
		{"id": int64(3), "name": "Tanya"},
		{"id": int64(5), "name": "Stan"},
	}, final.Rows)
	assert.True(t, final.Truncated)
}

func TestExecute_CountLocallyWithPostFilter(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: []Row{
			{"name": "Ali Hassan"},
			{"name": "Khalid"},
			{"name": "Mei Ling"},
		}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"COUNT(*)"},
		Where: map[string]queryir.Condition{
			"country": queryir.Eq("Malaysia"),
			"name":    {Op: queryir.OpContains, Value: "ALI"},
		},
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	require.NotNil(t, res.Final().Count)
	assert.Equal(t, int64(2), *res.Final().Count)
}

func TestExecute_NumericAwareNE(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: []Row{
			{"id": int64(1), "sem": int64(2)},
			{"id": int64(2), "sem": int64(3)},
		}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id", "sem"},
		Where:  map[string]queryir.Condition{"sem": {Op: queryir.OpNE, Value: 2.0}},
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, []Row{{"id": int64(2), "sem": int64(3)}}, res.Final().Rows)
}

func TestExecute_LimitTruncatesChunkUnion(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" {
			return QueryResult{Rows: idRows(450)}, nil
		}
		first := stmt.Params[0]
		return QueryResult{Rows: []Row{{"id": first}, {"id": first}, {"id": first}}}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{Table: "subjects", Select: []string{"id"}, LinkFromStep: queryir.Ptr(0), Limit: queryir.Ptr(5)},
	}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	final := res.Final()
	assert.True(t, final.Truncated)
	assert.Equal(t, []Row{
		{"id": int64(1)}, {"id": int64(1)}, {"id": int64(1)},
		{"id": int64(201)}, {"id": int64(201)},
	}, final.Rows)
}

func TestExecute_StoreErrorAbortsLinkedStepsOnly(t *testing.T) {
	storeDown := errors.New("connection reset")
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		if stmt.Table == "students" && len(stmt.Params) > 0 && stmt.Params[0] == "202301" {
			return QueryResult{}, storeDown
		}
		return QueryResult{Rows: idRows(2)}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}, Where: map[string]queryir.Condition{"cohort": queryir.Eq("202301")}},
		{Table: "subjects", Select: []string{"id"}, LinkFromStep: queryir.Ptr(0)},
		{Table: "subjects", Select: []string{"grade"}, LinkFromStep: queryir.Ptr(1)},
		{Table: "students", Select: []string{"id"}, Where: map[string]queryir.Condition{"cohort": queryir.Eq("202309")}},
	}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.Error(t, err)

	assert.True(t, IsStoreQueryError(err))
	assert.ErrorIs(t, err, storeDown)
	stmt, ok := StatementOf(err)
	require.True(t, ok)
	assert.Equal(t, "SELECT id FROM students WHERE cohort = ?", stmt)

	assert.Equal(t, StateFailed, res.Steps[0].State)
	assert.Equal(t, StateAborted, res.Steps[1].State)
	assert.Equal(t, StateAborted, res.Steps[2].State)
	assert.Equal(t, StateDone, res.Steps[3].State)
	assert.Empty(t, session.callsFor("subjects"))
	assert.Len(t, res.Steps[3].Rows, 2)
}

func TestExecute_QuotaStopsPlan(t *testing.T) {
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: idRows(450)}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{
		{Table: "students", Select: []string{"id"}},
		{Table: "subjects", Select: []string{"id"}, LinkFromStep: queryir.Ptr(0)},
		{Table: "students", Select: []string{"name"}},
	}}

	res, err := newTestExecutor(session, WithMaxStatements(2), WithWorkers(1)).Execute(context.Background(), plan)
	require.Error(t, err)

	assert.True(t, IsQuotaError(err))
	assert.Equal(t, StateFailed, res.Steps[1].State)
	assert.Equal(t, StateAborted, res.Steps[2].State)
	assert.Len(t, session.calls, 2)
}

func TestExecute_CancelledContext(t *testing.T) {
	session := &fakeSession{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor(session).Execute(ctx, queryir.Plan{Steps: []queryir.Step{{Table: "students", Select: []string{"id"}}}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, session.calls)
}

func TestExecute_ExactLimitIsNotTruncated(t *testing.T) {
	session := &fakeSession{handler: func(querycql.Statement) (QueryResult, error) {
		return QueryResult{Rows: idRows(3)}, nil
	}}
	plan := queryir.Plan{Steps: []queryir.Step{{
		Table:  "students",
		Select: []string{"id"},
		Where:  map[string]queryir.Condition{"gender": {Op: queryir.OpNE, Value: "Male"}},
		Limit:  queryir.Ptr(3),
	}}}

	res, err := newTestExecutor(session).Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, res.Final().Rows, 3)
	assert.False(t, res.Final().Truncated)
}

func TestExecute_DuplicateInValuesCountedOnce(t *testing.T) {
	// One row per distinct id, the way the store answers an IN list.
	session := &fakeSession{handler: func(stmt querycql.Statement) (QueryResult, error) {
		seen := make(map[any]bool)
		var rows []Row
		for _, p := range stmt.Params {
			if !seen[p] {
				seen[p] = true
				rows = append(rows, Row{"id": p})
			}
		}
		if stmt.Count {
			return QueryResult{Rows: []Row{{"count": int64(len(rows))}}}, nil
		}
		return QueryResult{Rows: rows}, nil
	}}
	values := append(idsAny(200), int64(1))

	for _, sel := range [][]string{{"id"}, {"COUNT(*)"}} {
		plan := queryir.Plan{Steps: []queryir.Step{{
			Table:  "subjects",
			Select: sel,
			Where:  map[string]queryir.Condition{"id": {Op: queryir.OpIN, Value: values}},
		}}}

		res, err := newTestExecutor(session).Execute(context.Background(), plan)
		require.NoError(t, err)

		final := res.Final()
		if final.Count != nil {
			assert.Equal(t, int64(200), *final.Count)
		} else {
			assert.Len(t, final.Rows, 200)
		}
		assert.Len(t, final.Statements, 1, "deduplicated list fits one chunk")
	}
}

func TestExecute_PlannerWarningsReachResult(t *testing.T) {
	session := &fakeSession{}
	step := queryir.Step{Table: "students", Select: []string{"id"}}
	step.Warn(Warning(ErrCodeUnresolvedValue, "programme Basket Weaving not in catalog, passed through"))

	res, err := newTestExecutor(session).Execute(context.Background(), queryir.Plan{Steps: []queryir.Step{step}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"UNRESOLVED_VALUE: programme Basket Weaving not in catalog, passed through",
	}, res.Final().Warnings)
}

func idsAny(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}
