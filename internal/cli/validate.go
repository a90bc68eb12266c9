package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file against the table catalog",
		Long: `Validate a plan as written: table and column names, operators and
their value counts, step links, limits and offsets.

No configuration or store is needed. Exits 1 when the plan is malformed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// ValidateOutput is the validate command's payload.
type ValidateOutput struct {
	Valid    bool     `json:"valid"`
	Steps    int      `json:"steps"`
	Problems []string `json:"problems,omitempty"`
}

// WriteText renders the verdict and one problem per line.
func (o ValidateOutput) WriteText(w io.Writer) error {
	if o.Valid {
		fmt.Fprintf(w, "plan valid (%d step(s))\n", o.Steps)
		return nil
	}
	for _, p := range o.Problems {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return reportError(f, WrapExitError(ExitCommandError, "failed to read plan", err))
	}
	plan, err := queryir.DecodePlan(data)
	if err != nil {
		return reportError(f, WrapExitError(ExitCommandError, "invalid plan file", err))
	}

	res := queryir.Validate(plan, schema.Default())
	f.VerboseLog("checked %d step(s) in %s", len(plan.Steps), path)
	out := ValidateOutput{Valid: res.Valid, Steps: len(plan.Steps), Problems: res.Problems}
	if res.Valid {
		return f.Success(out)
	}

	if err := f.Error(string(engine.ErrCodeMalformedPlan), "plan rejected", out); err != nil {
		return err
	}
	if f.Format != "json" {
		_ = out.WriteText(f.Writer)
	}
	return NewExitError(ExitFailure, "plan rejected")
}
