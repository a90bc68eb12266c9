package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/planner"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/resolve"
)

// PlanOptions are the flags shared by commands that take a plan file.
type PlanOptions struct {
	Query  string
	Terms  []string
	Role   string
	UserID string
	Raw    bool
}

func (o *PlanOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Query, "query", "", "request the plan answers; its entities refine the plan")
	cmd.Flags().StringArrayVar(&o.Terms, "term", nil, "candidate term extracted upstream (repeatable)")
	cmd.Flags().StringVar(&o.Role, "role", "staff", "caller role (staff|student)")
	cmd.Flags().StringVar(&o.UserID, "user-id", "", "caller's student ID, required for --role student")
	cmd.Flags().BoolVar(&o.Raw, "raw", false, "use the plan as written, without canonicalization")
}

// preparePlan reads a plan file and canonicalizes it for the caller.
func preparePlan(e *env, o *PlanOptions, path string) (queryir.Plan, resolve.Entities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return queryir.Plan{}, resolve.Entities{}, WrapExitError(ExitCommandError, "failed to read plan", err)
	}
	plan, err := queryir.DecodePlan(data)
	if err != nil {
		return queryir.Plan{}, resolve.Entities{}, WrapExitError(ExitCommandError, "invalid plan file", err)
	}

	ent := resolve.Entities{Filters: map[string]any{}, Operators: map[string]queryir.Operator{}}
	if o.Query != "" || len(o.Terms) > 0 {
		ent = e.resolver().Resolve(o.Query, o.Terms)
	}
	if o.Raw {
		return plan, ent, nil
	}

	role, err := planner.ParseRole(o.Role)
	if err != nil {
		return queryir.Plan{}, ent, WrapExitError(ExitCommandError, "invalid --role", err)
	}
	plan, err = e.planner().CanonicalizePlan(plan, ent, planner.Scope{Role: role, UserID: o.UserID})
	if err != nil {
		return queryir.Plan{}, ent, WrapExitError(ExitCommandError, "cannot scope plan", err)
	}
	return plan, ent, nil
}
