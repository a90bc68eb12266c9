package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error is an error detected while executing a plan.
//
// Error carries the failing step and, for store failures, the statement
// that was rejected. The underlying cause is kept and reachable through
// errors.Is / errors.As.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Step is the index of the failing step, or -1 for plan-level errors.
	Step int

	// Statement is the native statement that failed, if any.
	Statement string

	cause error
}

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeInputAmbiguous marks a term that matched a subject and a
	// programme equally well. The planner records it as a warning on the
	// final step; it never fails a plan.
	ErrCodeInputAmbiguous ErrorCode = "INPUT_AMBIGUOUS"

	// ErrCodeUnresolvedValue marks a filter value with no catalog match. The
	// value is passed through and the planner records the code as a warning
	// on the step.
	ErrCodeUnresolvedValue ErrorCode = "UNRESOLVED_VALUE"

	// ErrCodeUnsupportedScan is the store refusing a filter on a column
	// without an index. It is recovered once with a full scan and recorded
	// as a warning on the step.
	ErrCodeUnsupportedScan ErrorCode = "UNSUPPORTED_SCAN"

	// ErrCodeStoreQuery is any other store failure, or a second
	// UNSUPPORTED_SCAN after the retry.
	ErrCodeStoreQuery ErrorCode = "STORE_QUERY"

	// ErrCodeMalformedPlan is a plan rejected before any statement ran.
	ErrCodeMalformedPlan ErrorCode = "MALFORMED_PLAN"

	// ErrCodeQuotaExceeded is a plan that needed more statements than the
	// executor allows.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Step >= 0 {
		msg = fmt.Sprintf("%s (step=%d)", msg, e.Step)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

func codeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsStoreQueryError reports whether err is a STORE_QUERY error.
func IsStoreQueryError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeStoreQuery
}

// IsMalformedPlanError reports whether err is a MALFORMED_PLAN error.
func IsMalformedPlanError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeMalformedPlan
}

// IsQuotaError reports whether err is a QUOTA_EXCEEDED error.
func IsQuotaError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeQuotaExceeded
}

// StatementOf returns the statement attached to an execution error.
func StatementOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Statement != "" {
		return e.Statement, true
	}
	return "", false
}

// NewStoreQueryError wraps a store failure for a step. The statement is
// also attached as an error detail so it shows up in verbose reports.
func NewStoreQueryError(step int, statement string, cause error) *Error {
	return &Error{
		Code:      ErrCodeStoreQuery,
		Message:   "store rejected query",
		Step:      step,
		Statement: statement,
		cause:     errors.WithDetailf(cause, "statement: %s", statement),
	}
}

// NewMalformedPlanError wraps a validation or compile failure.
func NewMalformedPlanError(step int, cause error) *Error {
	return &Error{
		Code:    ErrCodeMalformedPlan,
		Message: "plan rejected",
		Step:    step,
		cause:   cause,
	}
}

// NewQuotaError reports a plan that issued too many statements.
func NewQuotaError(step, statements, limit int) *Error {
	return &Error{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("plan exceeded statement budget (%d > %d)", statements, limit),
		Step:    step,
	}
}

// Warning formats a recovered condition for Result.Warnings, prefixed with
// its code so callers can filter on it.
func Warning(code ErrorCode, msg string) string {
	return string(code) + ": " + msg
}
