package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/resolve"
	"github.com/roach88/planq/internal/valueindex"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Terms  []string
	Online bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Extract filters from a natural-language request",
		Long: `Resolve a request into a subject, a table hint and column filters.

Terms passed with --term are classified first, then phrases from the
request itself. Ambiguous terms are reported rather than guessed.

Example:
  planq resolve "students with cgpa above 3.5 in Computer Science"
  planq resolve "grades for databse fundamentals" --term "databse fundamentals"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Terms, "term", nil, "candidate term extracted upstream (repeatable)")
	cmd.Flags().BoolVar(&opts.Online, "online", false, "read live values from the store instead of cache and fallback")

	return cmd
}

// ResolveOutput is the resolve command's payload.
type ResolveOutput struct {
	Entities resolve.Entities                     `json:"entities"`
	Degraded map[valueindex.Family]valueindex.Source `json:"degraded,omitempty"`
}

func runResolve(opts *ResolveOptions, query string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	mode := offline
	if opts.Online {
		mode = online
	}
	e, err := newEnv(cmd.Context(), opts.RootOptions, cmd, mode)
	if err != nil {
		return reportError(f, err)
	}
	defer e.close()

	ent := e.resolver().Resolve(query, opts.Terms)
	out := ResolveOutput{Entities: ent}
	if e.values.IsDegraded() {
		out.Degraded = e.values.Degraded
	}
	return f.Success(out)
}

// WriteText renders entities one fact per line.
func (o ResolveOutput) WriteText(w io.Writer) error {
	ent := o.Entities
	fmt.Fprintf(w, "query:   %s\n", ent.Query)
	if ent.TableHint != "" {
		fmt.Fprintf(w, "table:   %s\n", ent.TableHint)
	}
	if ent.Subject != "" {
		fmt.Fprintf(w, "subject: %s\n", ent.Subject)
	}
	if len(ent.Filters) > 0 {
		fmt.Fprintln(w, "filters:")
		cols := make([]string, 0, len(ent.Filters))
		for c := range ent.Filters {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			fmt.Fprintf(w, "  %s %s %v\n", c, filterOp(ent, c), ent.Filters[c])
		}
	}
	for _, a := range ent.Ambiguous {
		fmt.Fprintf(w, "ambiguous: %q subject %q (%d) or programme %q (%d)\n",
			a.Term, a.Subject, a.SubjectScore, a.Programme, a.ProgrammeScore)
	}
	for _, u := range ent.Unresolved {
		fmt.Fprintf(w, "unresolved: %s\n", u)
	}
	writeDegraded(w, o.Degraded)
	return nil
}

func filterOp(ent resolve.Entities, col string) queryir.Operator {
	if op, ok := ent.Operators[col]; ok {
		return op
	}
	if _, ok := ent.Filters[col].([]string); ok {
		return queryir.OpIN
	}
	return queryir.OpEQ
}

func writeDegraded(w io.Writer, degraded map[valueindex.Family]valueindex.Source) {
	if len(degraded) == 0 {
		return
	}
	fams := make([]string, 0, len(degraded))
	for f, src := range degraded {
		fams = append(fams, fmt.Sprintf("%s=%s", f, src))
	}
	sort.Strings(fams)
	fmt.Fprintf(w, "degraded catalog: %v\n", fams)
}
