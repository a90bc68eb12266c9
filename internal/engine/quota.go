package engine

import (
	"sync/atomic"
)

// DefaultMaxStatements is the default number of statements one plan may
// issue, counting chunks and retries.
const DefaultMaxStatements = 1000

// QuotaEnforcer counts the statements a plan execution issues and enforces
// a maximum.
//
// Chunking multiplies statements: a linked step fed by a large ID pool can
// fan out into many sub-queries. The quota bounds that fan-out for a single
// request.
//
// Thread-safety: Check is safe for concurrent use by chunk workers.
type QuotaEnforcer struct {
	maxStatements int
	current       atomic.Int64
}

// NewQuotaEnforcer creates a quota enforcer with the given limit. A limit
// of zero or less disables the quota.
func NewQuotaEnforcer(maxStatements int) *QuotaEnforcer {
	return &QuotaEnforcer{maxStatements: maxStatements}
}

// Check counts one statement for step and returns a QUOTA_EXCEEDED error
// once the limit is passed.
func (q *QuotaEnforcer) Check(step int) error {
	n := int(q.current.Add(1))
	if q.maxStatements > 0 && n > q.maxStatements {
		return NewQuotaError(step, n, q.maxStatements)
	}
	return nil
}

// Current returns the number of statements counted so far.
func (q *QuotaEnforcer) Current() int {
	return int(q.current.Load())
}

// MaxStatements returns the limit.
func (q *QuotaEnforcer) MaxStatements() int {
	return q.maxStatements
}
