package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/report"
	"github.com/DrSkyle/levelgraph/pkg/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
		from   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the graph (CSV, JSON, YAML)",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			ws, err := a.source(cmd.Context(), from)
			if err != nil {
				return err
			}
			snap, err := report.TakeSnapshot(ws.Store, ws.Start)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return report.Write(cmd.OutOrStdout(), snap, f)
			}
			var buf bytes.Buffer
			if err := report.Write(&buf, snap, f); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&from, "from", "", "Export an HCL graph file instead of the level directory")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <file.hcl>",
		Short: "Replace graph.json with an HCL graph file",
		Long: `Replace graph.json with the levels and links of an HCL graph file.
An empty level file is created for every level that has none.`,
		Example: `  level "1-a" {
    reward = default_reward
    next   = ["1-b"]
    link "1-c" {
      outcome "1-c" { weight = 0.8 }
      outcome "1-b" { weight = 0.2 }
    }
  }`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.source(ctx, args[0])
			if err != nil {
				return err
			}
			bs, err := a.store(ctx)
			if err != nil {
				return err
			}
			if !force {
				_, err := bs.Get(ctx, level.DocumentKey)
				switch {
				case err == nil:
					return fmt.Errorf("%s already exists (use --force to replace it)", level.DocumentKey)
				case !errors.Is(err, storage.ErrNotExist):
					return err
				}
			}
			if err := ws.EnsureLevelFiles(ctx, bs); err != nil {
				return err
			}
			if err := level.Save(ctx, bs, ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d levels, %d links\n", ws.Store.NodeCount(), ws.Store.EdgeCount())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing graph.json")
	return cmd
}
