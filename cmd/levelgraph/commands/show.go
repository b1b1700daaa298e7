package commands

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/report"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create graph.json in the level directory",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			bs, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			created, err := level.Init(cmd.Context(), bs, a.levelOptions())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", level.DocumentKey)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", level.DocumentKey)
			}
			return nil
		}),
	}
}

func newShowCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the level graph",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ws, err := a.source(cmd.Context(), from)
			if err != nil {
				return err
			}
			snap, err := report.TakeSnapshot(ws.Store, ws.Start)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "REWARD", "UTILITY", "TERMINAL", "DEPTH", "NEXT")
			for _, n := range snap.Nodes {
				depth := "-"
				if n.Depth != nil {
					depth = strconv.Itoa(*n.Depth)
				}
				t.Row(
					n.ID,
					strconv.FormatFloat(n.Reward, 'g', -1, 64),
					strconv.FormatFloat(n.Utility, 'f', 4, 64),
					strconv.FormatBool(n.Terminal),
					depth,
					strings.Join(n.Neighbors, ", "),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			fmt.Fprintf(cmd.OutOrStdout(), "%d levels, %d links\n", ws.Store.NodeCount(), ws.Store.EdgeCount())
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "Read an HCL graph file instead of the level directory")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Print a random segment of a level",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			_, ws, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			var r *rand.Rand
			if cmd.Flags().Changed("seed") {
				r = rand.New(rand.NewPCG(seed, seed))
			}
			segment, err := ws.Preview(args[0], r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), segment)
			return nil
		}),
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for segment choice")
	return cmd
}
