package engine

import (
	"context"

	"github.com/roach88/planq/internal/querycql"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// QueryResult is what the store returned for one statement.
type QueryResult struct {
	Rows     []Row
	Warnings []string
}

// Session runs compiled statements against a store.
//
// Implementations must be safe for concurrent use: chunk sub-queries share
// one session.
type Session interface {
	// Query runs one statement with its bound parameters.
	Query(ctx context.Context, stmt querycql.Statement) (QueryResult, error)

	// IsMissingIndex reports whether err is the store refusing to filter
	// on an unindexed column without a full scan.
	IsMissingIndex(err error) bool
}
