// Package engine executes query plans against a restricted wide-column
// store.
//
// The store has no joins, refuses filters on unindexed columns unless a
// full scan is requested, caps IN-list sizes and only understands a few
// comparison operators. The executor works around each limit:
//
// Linking:
// A step with LinkFromStep reads the link column (default "id") from the
// source step's rows and filters its own table with an IN over those
// values. An empty pool skips the step without issuing a statement.
//
// Chunking:
// IN-lists longer than the chunk size are split into sub-steps that run
// concurrently on a bounded worker pool. Rows are merged in chunk order and
// counts are summed, so results are deterministic.
//
// Post-filtering:
// NE, CONTAINS and LIKE are evaluated locally on the returned rows. Offset
// and limit are applied after filtering.
//
// Full-scan retry:
// A statement rejected for filtering on an unindexed column is retried
// exactly once with ALLOW FILTERING. A second rejection fails the step.
//
// STEP STATES:
//
//	PENDING -> EXECUTING -> [RETRY_WITH_FULL_SCAN] -> DONE | FAILED
//	PENDING -> SKIPPED (empty ID pool)
//	PENDING -> ABORTED (linked from a failed step)
//
// A failed step aborts every later step linked from it, directly or
// transitively. Steps that do not depend on it still run.
package engine
