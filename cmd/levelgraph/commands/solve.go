package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/solver"
	"github.com/DrSkyle/levelgraph/pkg/storage"
)

func newSolveCmd(a *app) *cobra.Command {
	var (
		from   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute level utilities by value iteration",
		Long: `Compute the utility of every level and store it in graph.json.

Terminal levels and levels without exits are worth their reward. Every other
level is worth its reward plus the discounted value of its best link.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			s, err := solver.New(a.cfg.Solver)
			if err != nil {
				return err
			}

			var (
				bs storage.BlobStore
				ws *level.Workspace
			)
			if from != "" {
				ws, err = a.source(cmd.Context(), from)
			} else {
				bs, ws, err = a.load(cmd.Context())
			}
			if err != nil {
				return err
			}

			res, err := s.Solve(cmd.Context(), ws.Store)
			if err != nil {
				return err
			}
			if err := solver.Apply(ws.Store, res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ws.Store.NodeIDs() {
				line := fmt.Sprintf("%-16s %10.4f", id, res.Utilities[id])
				if next, ok := res.Policy[id]; ok {
					line += "  -> " + next
				}
				fmt.Fprintln(out, line)
			}
			if res.Converged {
				fmt.Fprintf(out, "Converged after %d iterations\n", res.Iterations)
			} else {
				a.log.Warn("Solver did not converge", "iterations", res.Iterations, "delta", res.Delta)
			}

			if bs == nil || dryRun {
				return nil
			}
			return level.Save(cmd.Context(), bs, ws)
		}),
	}

	defaults := solver.DefaultOptions()
	cmd.Flags().Float64("discount", defaults.Discount, "Discount factor in [0, 1]")
	cmd.Flags().Float64("epsilon", defaults.Epsilon, "Convergence threshold")
	cmd.Flags().Int("max-iterations", defaults.MaxIterations, "Iteration limit")
	cmd.Flags().StringVar(&from, "from", "", "Solve an HCL graph file instead of the level directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print utilities without saving")

	_ = a.v.BindPFlag("solver.discount", cmd.Flags().Lookup("discount"))
	_ = a.v.BindPFlag("solver.epsilon", cmd.Flags().Lookup("epsilon"))
	_ = a.v.BindPFlag("solver.max_iterations", cmd.Flags().Lookup("max-iterations"))
	return cmd
}
