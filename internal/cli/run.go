package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/valueindex"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	PlanOptions

	// RunIDs overrides the run ID generator (for testing).
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Execute a plan against the configured store",
		Long: `Canonicalize a plan and execute it step by step against the store
named in the configuration (store.backend: sqlite | cassandra).

Live distinct values are read from the store to build the value catalog.
When a step fails, the steps that did run are still printed.

Example:
  planq run plan.yaml --query "female students in Computer Science"
  planq run plan.yaml --config planq.yaml --format json
  planq run plan.yaml --role student --user-id 1042`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// RunOutput is the run command's payload.
type RunOutput struct {
	Plan     queryir.Plan                            `json:"plan"`
	Result   *engine.PlanResult                      `json:"result,omitempty"`
	Degraded map[valueindex.Family]valueindex.Source `json:"degraded,omitempty"`

	verbose bool
}

func runPlan(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	e, err := newEnv(ctx, opts.RootOptions, cmd, online)
	if err != nil {
		return reportError(f, err)
	}
	defer e.close()

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, cancelling plan", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	plan, _, err := preparePlan(e, &opts.PlanOptions, path)
	if err != nil {
		return reportError(f, err)
	}

	var extra []engine.Option
	if opts.RunIDs != nil {
		extra = append(extra, engine.WithRunIDGenerator(opts.RunIDs))
	}

	res, runErr := e.executor(extra...).Execute(ctx, plan)
	out := RunOutput{Plan: plan, Result: res, verbose: opts.Verbose}
	if e.values.IsDegraded() {
		out.Degraded = e.values.Degraded
	}
	if runErr == nil {
		f.VerboseLog("run %s issued %d statement(s)", res.RunID, len(res.Statements()))
		return f.Success(out)
	}

	// Partial results go out ahead of the error in text mode. In JSON mode
	// the steps ride along as error details.
	if res != nil {
		if f.Format == "json" {
			return reportRunError(f, runErr, out)
		}
		_ = out.WriteText(f.Writer)
	}
	return reportError(f, runErr)
}

// reportRunError reports an engine error with the partial result attached.
func reportRunError(f *OutputFormatter, err error, out RunOutput) error {
	code := ErrCodeGeneric
	if c, ok := engineCode(err); ok {
		code = c
	}
	if outErr := f.Error(code, err.Error(), out); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "plan failed", err)
}

// WriteText renders each step's state, rows and warnings.
func (o RunOutput) WriteText(w io.Writer) error {
	if o.Result == nil {
		return nil
	}
	for _, s := range o.Result.Steps {
		fmt.Fprintf(w, "step %d (%s): %s", s.Step, s.Table, s.State)
		if s.Retried {
			fmt.Fprint(w, " after full-scan retry")
		}
		fmt.Fprintln(w)
		if o.verbose {
			for _, stmt := range s.Statements {
				fmt.Fprintf(w, "  > %s\n", stmt)
			}
		}
		if s.Count != nil {
			fmt.Fprintf(w, "  count: %d\n", *s.Count)
		}
		for _, row := range s.Rows {
			fmt.Fprintf(w, "  %s\n", formatRow(row))
		}
		if s.Truncated {
			fmt.Fprintln(w, "  (truncated)")
		}
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
	writeDegraded(w, o.Degraded)
	return nil
}

// formatRow renders a row as column=value pairs in column order.
func formatRow(row engine.Row) string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%v", c, row[c])
	}
	return strings.Join(parts, " ")
}
