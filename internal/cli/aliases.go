package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/valueindex"
)

// AliasesOptions holds flags for the aliases command.
type AliasesOptions struct {
	*RootOptions
	Family string
	Online bool
}

// NewAliasesCommand creates the aliases command.
func NewAliasesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AliasesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "List canonical values and the spellings grouped under them",
		Long: `Show the value catalog the resolver works from: each canonical key with
its display form and the raw variants found in the store.

Example:
  planq aliases --family subject
  planq aliases --family programme --online --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAliases(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Family, "family", "", "only this family (subject|programme|country|race|financialaid)")
	cmd.Flags().BoolVar(&opts.Online, "online", false, "read live values from the store instead of cache and fallback")

	return cmd
}

// FamilyAliases is one family's alias map.
type FamilyAliases struct {
	Family  valueindex.Family                `json:"family"`
	Source  valueindex.Source                `json:"source"`
	Entries map[string]valueindex.AliasEntry `json:"entries"`
	keys    []string
}

// AliasesOutput is the aliases command's payload.
type AliasesOutput struct {
	Families       []FamilyAliases `json:"families"`
	ActiveStatuses []string        `json:"active_statuses"`
}

func runAliases(opts *AliasesOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	families := valueindex.Families
	if opts.Family != "" {
		fam, ok := valueindex.ParseFamily(opts.Family)
		if !ok {
			return reportError(f, NewExitError(ExitCommandError, fmt.Sprintf("unknown family %q", opts.Family)))
		}
		families = []valueindex.Family{fam}
	}

	mode := offline
	if opts.Online {
		mode = online
	}
	e, err := newEnv(cmd.Context(), opts.RootOptions, cmd, mode)
	if err != nil {
		return reportError(f, err)
	}
	defer e.close()

	out := AliasesOutput{ActiveStatuses: e.values.ActiveStatuses()}
	for _, fam := range families {
		m := e.values.Map(fam)
		src := valueindex.SourceLive
		if s, ok := e.values.Degraded[fam]; ok {
			src = s
		}
		fa := FamilyAliases{Family: fam, Source: src, Entries: make(map[string]valueindex.AliasEntry, m.Len()), keys: m.Keys()}
		for _, k := range fa.keys {
			entry, _ := m.Lookup(k)
			fa.Entries[k] = entry
		}
		out.Families = append(out.Families, fa)
	}
	f.VerboseLog("listed %d famil(ies)", len(out.Families))
	return f.Success(out)
}

// WriteText renders one line per canonical key.
func (o AliasesOutput) WriteText(w io.Writer) error {
	for _, fa := range o.Families {
		fmt.Fprintf(w, "%s (%s, %d keys)\n", fa.Family, fa.Source, len(fa.keys))
		for _, k := range fa.keys {
			entry := fa.Entries[k]
			fmt.Fprintf(w, "  %-32s %s", k, entry.Display)
			if len(entry.Variants) > 1 {
				fmt.Fprintf(w, "  [%s]", strings.Join(entry.Variants, " | "))
			}
			fmt.Fprintln(w)
		}
	}
	if len(o.ActiveStatuses) > 0 {
		fmt.Fprintf(w, "active statuses: %s\n", strings.Join(o.ActiveStatuses, ", "))
	}
	return nil
}
