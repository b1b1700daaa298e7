package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/levelgraph/pkg/graph"
	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/storage"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		reward   float64
		terminal bool
	)
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a level",
		Long:  "Add a level node. An empty segments/<id>.txt is created when missing.",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.edit(cmd.Context(), func(bs storage.BlobStore, ws *level.Workspace) error {
				if err := ws.AddLevel(cmd.Context(), bs, id, reward); err != nil {
					return err
				}
				if err := ws.Store.SetTerminal(id, terminal); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", id)
				return nil
			})
		}),
	}
	cmd.Flags().Float64Var(&reward, "reward", level.DefaultReward, "Level reward")
	cmd.Flags().BoolVar(&terminal, "terminal", false, "Mark the level terminal")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a level",
		Long: `Remove a level and every link touching it. Probability mass that pointed
at the level is shared among the remaining outcomes of each link.

Without --purge the level file is kept and the level returns, unlinked, the
next time the directory is loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.edit(cmd.Context(), func(bs storage.BlobStore, ws *level.Workspace) error {
				if err := ws.RemoveLevel(cmd.Context(), bs, id, purge); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		}),
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the level file")
	return cmd
}

func newLinkCmd(a *app) *cobra.Command {
	var outcomes []string
	cmd := &cobra.Command{
		Use:     "link <from> <to>",
		Short:   "Link two levels",
		Example: "  levelgraph link 1-a 1-b --outcome 1-b=0.8 --outcome 1-c=0.2",
		Args:    cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			src, tgt := args[0], args[1]
			if src == tgt {
				return fmt.Errorf("%w: cannot link %q to itself", graph.ErrInvalidArgument, src)
			}
			probability, err := parseOutcomes(outcomes)
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(_ storage.BlobStore, ws *level.Workspace) error {
				if err := ws.Store.AddDefaultEdge(src, tgt, probability...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s\n", src, tgt)
				return nil
			})
		}),
	}
	cmd.Flags().StringArrayVar(&outcomes, "outcome", nil, "Outcome as id=weight (repeatable)")
	return cmd
}

func parseOutcomes(specs []string) ([]graph.Outcome, error) {
	out := make([]graph.Outcome, 0, len(specs))
	for _, spec := range specs {
		id, raw, ok := strings.Cut(spec, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: outcome %q, want id=weight", graph.ErrInvalidArgument, spec)
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: outcome %q: %v", graph.ErrInvalidArgument, spec, err)
		}
		out = append(out, graph.Outcome{Node: id, Weight: w})
	}
	return out, nil
}

func newUnlinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <from> <to>",
		Short: "Remove a link",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), func(_ storage.BlobStore, ws *level.Workspace) error {
				if err := ws.Store.RemoveEdge(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s -> %s\n", args[0], args[1])
				return nil
			})
		}),
	}
}

func newRewardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reward <id> <value>",
		Short: "Set a level's reward",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			reward, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: reward %q: %v", graph.ErrInvalidArgument, args[1], err)
			}
			return a.edit(cmd.Context(), func(_ storage.BlobStore, ws *level.Workspace) error {
				return ws.Store.SetReward(args[0], reward)
			})
		}),
	}
}

func newTerminalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "terminal <id> [true|false]",
		Short: "Mark a level terminal",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			terminal := true
			if len(args) == 2 {
				var err error
				if terminal, err = strconv.ParseBool(args[1]); err != nil {
					return fmt.Errorf("%w: %q is not a boolean", graph.ErrInvalidArgument, args[1])
				}
			}
			return a.edit(cmd.Context(), func(_ storage.BlobStore, ws *level.Workspace) error {
				return ws.Store.SetTerminal(args[0], terminal)
			})
		}),
	}
}
