// Package canon normalizes messy real-world strings into stable lookup forms.
//
// Every function in this package is pure, total and idempotent: it never
// panics, never returns an error, and applying it to its own output returns
// the same output. Callers that need to know whether an input was usable get
// an ok bool instead of an error.
//
// The canonical key produced by Key is a lookup key only. It is lowercase,
// ASCII alphanumeric plus single spaces, and is never shown to users.
package canon
