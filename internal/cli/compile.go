package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/querycql"
	"github.com/roach88/planq/internal/queryir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	PlanOptions
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan.yaml>",
		Short: "Show the statements a plan would issue",
		Long: `Canonicalize a plan and compile each step to a parameterized statement
without touching the store.

Linked steps are shown with their own conditions only; the ID pool is
bound at run time.

Example:
  planq compile plan.yaml
  planq compile plan.yaml --query "grades for calculus in cohort 202301"
  planq compile plan.yaml --role student --user-id 1042 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// CompiledStep is one step's statement and local filters.
type CompiledStep struct {
	Step         int      `json:"step"`
	Table        string   `json:"table"`
	LinkFromStep *int     `json:"link_from_step,omitempty"`
	LinkColumn   string   `json:"link_column,omitempty"`
	CQL          string   `json:"cql"`
	Params       []any    `json:"params"`
	PostFilters  []string `json:"post_filters,omitempty"`
}

// CompileOutput is the compile command's payload.
type CompileOutput struct {
	Plan  queryir.Plan   `json:"plan"`
	Steps []CompiledStep `json:"steps"`
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	e, err := newEnv(cmd.Context(), opts.RootOptions, cmd, offline)
	if err != nil {
		return reportError(f, err)
	}
	defer e.close()

	plan, _, err := preparePlan(e, &opts.PlanOptions, path)
	if err != nil {
		return reportError(f, err)
	}
	if res := queryir.Validate(plan, e.schema); !res.Valid {
		return reportError(f, engine.NewMalformedPlanError(-1, res.Err()))
	}

	out, err := compilePlan(plan)
	if err != nil {
		return reportError(f, err)
	}
	f.VerboseLog("compiled %d step(s) from %s", len(out.Steps), path)
	return f.Success(out)
}

func compilePlan(plan queryir.Plan) (CompileOutput, error) {
	c := querycql.NewCompiler()
	out := CompileOutput{Plan: plan, Steps: make([]CompiledStep, 0, len(plan.Steps))}
	for i, step := range plan.Steps {
		stmt, post, err := c.Compile(step)
		if err != nil {
			return CompileOutput{}, engine.NewMalformedPlanError(i, err)
		}
		cs := CompiledStep{
			Step:         i,
			Table:        step.Table,
			LinkFromStep: step.LinkFromStep,
			CQL:          stmt.CQL,
			Params:       stmt.Params,
		}
		if step.LinkFromStep != nil {
			cs.LinkColumn = step.Link()
		}
		if cs.Params == nil {
			cs.Params = []any{}
		}
		for _, p := range post {
			cs.PostFilters = append(cs.PostFilters, fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Value))
		}
		out.Steps = append(out.Steps, cs)
	}
	return out, nil
}

// WriteText renders one block per step.
func (o CompileOutput) WriteText(w io.Writer) error {
	for _, s := range o.Steps {
		fmt.Fprintf(w, "step %d (%s)", s.Step, s.Table)
		if s.LinkFromStep != nil {
			fmt.Fprintf(w, " <- step %d.%s", *s.LinkFromStep, s.LinkColumn)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", s.CQL)
		if len(s.Params) > 0 {
			fmt.Fprintf(w, "  params: %v\n", s.Params)
		}
		for _, p := range s.PostFilters {
			fmt.Fprintf(w, "  post-filter: %s\n", p)
		}
	}
	return nil
}
