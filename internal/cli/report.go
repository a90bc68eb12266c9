package cli

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/planq/internal/engine"
)

// reportError writes err through the formatter and returns it as an
// ExitError so main knows it has been shown.
func reportError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var details any

	var engErr *engine.Error
	var exitErr *ExitError
	switch {
	case errors.As(err, &engErr):
		code = string(engErr.Code)
		if engErr.Statement != "" {
			details = map[string]any{"step": engErr.Step, "statement": engErr.Statement}
		}
	case errors.As(err, &exitErr) && exitErr.Code == ExitCommandError:
		code = ErrCodeInput
	}

	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	if exitErr != nil {
		return exitErr
	}
	return WrapExitError(ExitFailure, "command failed", err)
}

// engineCode returns the engine error code carried by err, if any.
func engineCode(err error) (string, bool) {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code), true
	}
	return "", false
}
