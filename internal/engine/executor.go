package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
)

// chunkResult is what one chunk statement produced.
type chunkResult struct {
	rows       []Row
	warnings   []string
	statements []string
	retried    bool
}

// runStep executes one step and records its outcome in results[len-1].
// Earlier entries are the results of the steps before it.
//
// Flow:
//  1. Resolve the ID pool from the source step if the step is linked
//  2. Split oversized IN-lists into chunks
//  3. Compile every chunk
//  4. Run the chunks on the worker pool, retrying a missing-index
//     rejection once with a full scan
//  5. Merge in chunk order, post-filter, apply offset and limit
func (e *Executor) runStep(ctx context.Context, log *zap.Logger, quota *QuotaEnforcer, step queryir.Step, results []Result) error {
	res := &results[len(results)-1]
	idx := res.Step
	log = log.With(zap.Int("step", idx), zap.String("table", step.Table))

	if step.LinkFromStep != nil {
		from := *step.LinkFromStep
		src := &results[from]
		if src.failed() {
			res.setState(StateAborted)
			res.warn(fmt.Sprintf("not run: linked from failed step %d", from))
			log.Debug("step aborted", zap.Int("from", from))
			return nil
		}
		bound, ok := bindPool(step, src.Rows)
		if !ok {
			res.setState(StateSkipped)
			res.warn(fmt.Sprintf("skipped: step %d produced no %s values", from, step.Link()))
			log.Debug("step skipped, empty id pool", zap.Int("from", from))
			return nil
		}
		step = bound
	}

	res.setState(StateExecuting)
	chunks := e.compiler.Chunk(step, e.chunkSize)
	stmts := make([]querycql.Statement, len(chunks))
	var post []queryir.Condition
	for i, chunk := range chunks {
		stmt, p, err := e.compiler.Compile(chunk)
		if err != nil {
			res.setState(StateFailed)
			return NewMalformedPlanError(idx, err)
		}
		stmts[i], post = stmt, p
	}
	preds := make([]predicate, len(post))
	for i, c := range post {
		p, err := newPredicate(c)
		if err != nil {
			res.setState(StateFailed)
			return NewMalformedPlanError(idx, err)
		}
		preds[i] = p
	}
	log.Debug("running step", zap.Int("chunks", len(stmts)), zap.Int("post_filters", len(preds)))

	outs := make([]chunkResult, len(stmts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range stmts {
		g.Go(func() error {
			var err error
			outs[i], err = e.runStatement(gctx, log, quota, idx, stmts[i])
			return err
		})
	}
	err := g.Wait()

	for _, o := range outs {
		res.Statements = append(res.Statements, o.statements...)
		res.Warnings = append(res.Warnings, o.warnings...)
		res.Retried = res.Retried || o.retried
	}
	if res.Retried {
		res.setState(StateRetryWithFullScan)
	}
	if err != nil {
		res.setState(StateFailed)
		log.Warn("step failed", zap.Error(err))
		return err
	}

	merge(res, step, stmts[0], outs, preds)
	res.setState(StateDone)
	log.Debug("step done", zap.Int("rows", len(res.Rows)), zap.Bool("truncated", res.Truncated))
	return nil
}

// runStatement issues one statement, retrying once with a full scan when
// the store refuses to filter on an unindexed column.
func (e *Executor) runStatement(ctx context.Context, log *zap.Logger, quota *QuotaEnforcer, step int, stmt querycql.Statement) (chunkResult, error) {
	var out chunkResult
	if err := quota.Check(step); err != nil {
		return out, err
	}
	out.statements = append(out.statements, stmt.CQL)
	log.Debug("query", zap.String("cql", stmt.CQL), zap.Int("params", len(stmt.Params)))
	qr, err := e.session.Query(ctx, stmt)

	if err != nil && !stmt.AllowFiltering && e.session.IsMissingIndex(err) {
		log.Info("retrying with full scan", zap.String("cql", stmt.CQL), zap.Error(err))
		out.retried = true
		out.warnings = append(out.warnings, Warning(ErrCodeUnsupportedScan, "retried with full scan: "+stmt.CQL))
		stmt = stmt.WithAllowFiltering()
		if qerr := quota.Check(step); qerr != nil {
			return out, qerr
		}
		out.statements = append(out.statements, stmt.CQL)
		qr, err = e.session.Query(ctx, stmt)
	}
	if err != nil {
		return out, NewStoreQueryError(step, stmt.CQL, err)
	}
	out.rows = qr.Rows
	out.warnings = append(out.warnings, qr.Warnings...)
	return out, nil
}

// merge folds chunk results into res in chunk order.
func merge(res *Result, step queryir.Step, stmt querycql.Statement, outs []chunkResult, preds []predicate) {
	if stmt.Count && !stmt.CountLocally {
		var total int64
		for _, o := range outs {
			total += countOf(o.rows)
		}
		res.Count = &total
		return
	}

	var rows []Row
	for _, o := range outs {
		rows = append(rows, o.rows...)
	}
	rows = filterRows(rows, preds)

	if stmt.CountLocally {
		n := int64(len(rows))
		res.Count = &n
		return
	}

	if len(stmt.Extra) > 0 {
		for i, row := range rows {
			rows[i] = withoutColumns(row, stmt.Extra)
		}
	}
	if step.Offset != nil {
		if off := *step.Offset; off < len(rows) {
			rows = rows[off:]
		} else {
			rows = nil
		}
	}
	if step.Limit != nil && len(rows) > *step.Limit {
		rows = rows[:*step.Limit]
		res.Truncated = true
	}
	if rows == nil {
		rows = []Row{}
	}
	res.Rows = rows
}

// countOf reads the single value of a COUNT result. Stores name the
// column differently, so the only value of the only row is used.
func countOf(rows []Row) int64 {
	var total int64
	for _, row := range rows {
		for _, v := range row {
			if f, ok := toFloat(v); ok {
				total += int64(f)
			}
		}
	}
	return total
}

func withoutColumns(row Row, cols []string) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, c := range cols {
		delete(out, c)
	}
	return out
}

// bindPool restricts step to the link column values found in the source
// rows. Values are deduplicated in first-seen order. An existing condition
// on the link column is kept by dropping pool values it rejects. It
// reports false when nothing is left.
func bindPool(step queryir.Step, rows []Row) (queryir.Step, bool) {
	link := step.Link()

	var existing *predicate
	if c, ok := step.Where[link]; ok {
		c.Column = link
		if p, err := newPredicate(c); err == nil {
			existing = &p
		}
	}

	seen := make(map[string]bool)
	var pool []any
	for _, row := range rows {
		v, ok := row[link]
		if !ok || v == nil {
			continue
		}
		k := queryir.ValueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		if existing != nil && !existing.match(v) {
			continue
		}
		pool = append(pool, v)
	}
	if len(pool) == 0 {
		return step, false
	}

	out := step.Clone()
	if out.Where == nil {
		out.Where = make(map[string]queryir.Condition)
	}
	out.Where[link] = queryir.Condition{Column: link, Op: queryir.OpIN, Value: pool}
	return out, true
}
