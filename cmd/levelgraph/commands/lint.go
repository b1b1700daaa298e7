package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/levelgraph/pkg/policy"
)

func newLintCmd(a *app) *cobra.Command {
	var (
		from   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check the graph for unreachable levels, dead ends and broken links",
		Long: `Check the graph with CEL rules and structural checks.

Rules see these variables for each level: id, reward, utility, terminal,
depth (-1 when unreachable), reachable, out_degree, in_degree, neighbors.`,
		Example: `  levelgraph lint
  levelgraph lint --rules rules.yaml --strict`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			rules := policy.DefaultRules()
			if path := a.cfg.Lint.Rules; path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				rules, err = policy.LoadRules(f)
				f.Close()
				if err != nil {
					return err
				}
			}

			ws, err := a.source(cmd.Context(), from)
			if err != nil {
				return err
			}
			linter, err := policy.NewLinter(ws.Start, rules, a.log)
			if err != nil {
				return err
			}
			findings, err := linter.Lint(ws.Store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if findings == nil {
					findings = []policy.Finding{}
				}
				if err := enc.Encode(findings); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					fmt.Fprintln(out, f.String())
				}
			}

			threshold := policy.SeverityError
			if a.cfg.Lint.Strict {
				threshold = policy.SeverityWarning
			}
			if policy.Fails(findings, threshold) {
				return fmt.Errorf("lint failed with %d findings", len(findings))
			}
			if !asJSON {
				fmt.Fprintf(out, "%d findings\n", len(findings))
			}
			return nil
		}),
	}
	cmd.Flags().String("rules", "", "YAML rule file (replaces the built-in rules)")
	cmd.Flags().Bool("strict", false, "Fail on warnings too")
	cmd.Flags().StringVar(&from, "from", "", "Lint an HCL graph file instead of the level directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print findings as JSON")

	_ = a.v.BindPFlag("lint.rules", cmd.Flags().Lookup("rules"))
	_ = a.v.BindPFlag("lint.strict", cmd.Flags().Lookup("strict"))
	return cmd
}
