package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/levelgraph/pkg/config"
	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/storage"
	"github.com/DrSkyle/levelgraph/pkg/telemetry"
	"github.com/DrSkyle/levelgraph/pkg/version"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *slog.Logger
	metrics *telemetry.Metrics

	shutdown func(context.Context) error
}

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "levelgraph",
		Short: "Level progression graph editor",
		Long: `levelgraph - maintain the graph of levels a player moves through.

Levels live in a directory (or s3://bucket/prefix) holding graph.json and
one segments/<id>.txt file per level.`,
		Version:           version.Current,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ~/"+config.FileName+")")
	pf.String("dir", ".", "Level directory or s3://bucket/prefix")
	pf.String("start", level.DefaultStart, "Start node id")
	pf.String("region", config.DefaultRegion, "AWS Region for s3:// directories")
	pf.String("s3-endpoint", "", "Custom S3 endpoint (e.g. LocalStack)")
	pf.Int("workers", config.DefaultWorkers, "Concurrent level file reads")
	pf.Bool("json-logs", false, "Log as JSON")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.String("otel-endpoint", "", "OTLP/HTTP trace endpoint")
	pf.Bool("no-telemetry", false, "Disable tracing")

	for key, flag := range map[string]string{
		"dir":                "dir",
		"start":              "start",
		"region":             "region",
		"s3_endpoint":        "s3-endpoint",
		"workers":            "workers",
		"json_logs":          "json-logs",
		"verbose":            "verbose",
		"telemetry.endpoint": "otel-endpoint",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	root.AddCommand(
		newInitCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newLinkCmd(a),
		newUnlinkCmd(a),
		newRewardCmd(a),
		newTerminalCmd(a),
		newPreviewCmd(a),
		newSolveCmd(a),
		newLintCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("no-telemetry"); f != nil && f.Changed {
		a.v.Set("telemetry.enabled", false)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(a.log)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(cmd.Context(), telemetry.Settings{
			ServiceName:    version.AppName,
			ServiceVersion: version.Current,
			Endpoint:       cfg.Telemetry.Endpoint,
		})
		if err != nil {
			a.log.Warn("Telemetry disabled", "error", err)
		} else {
			a.shutdown = shutdown
		}
	}

	a.metrics, err = telemetry.NewMetrics()
	return err
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.shutdown(ctx)
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	if cfg.JSONLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// run wraps a command body with metrics.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if a.metrics != nil {
			a.metrics.Record(cmd.Context(), cmd.Name(), err)
		}
		if err != nil && a.shutdown != nil {
			// PersistentPostRunE is skipped on error.
			_ = a.teardown(cmd.Context())
			a.shutdown = nil
		}
		return err
	}
}

func (a *app) store(ctx context.Context) (storage.BlobStore, error) {
	return storage.Open(ctx, a.cfg.Dir, storage.Options{
		Region:   a.cfg.Region,
		Endpoint: a.cfg.S3Endpoint,
	})
}

func (a *app) levelOptions() level.Options {
	opts := a.cfg.LevelOptions()
	opts.Logger = a.log
	return opts
}

// load opens the level directory and reads it.
func (a *app) load(ctx context.Context) (storage.BlobStore, *level.Workspace, error) {
	bs, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	ws, err := level.Load(ctx, bs, a.levelOptions())
	if err != nil {
		return nil, nil, err
	}
	return bs, ws, nil
}

// edit loads the level directory, applies fn and saves the result.
func (a *app) edit(ctx context.Context, fn func(bs storage.BlobStore, ws *level.Workspace) error) error {
	bs, ws, err := a.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(bs, ws); err != nil {
		return err
	}
	return level.Save(ctx, bs, ws)
}

// source returns the workspace read from an HCL file when from is set, and
// from the level directory otherwise.
func (a *app) source(ctx context.Context, from string) (*level.Workspace, error) {
	if from == "" {
		_, ws, err := a.load(ctx)
		return ws, err
	}
	src, err := os.ReadFile(from)
	if err != nil {
		return nil, err
	}
	return level.DecodeHCL(from, src, a.levelOptions())
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("LEVELGRAPH %s", version.Current)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	if cmd.Example != "" {
		fmt.Fprintln(w, titleStyle.Render("EXAMPLES"))
		fmt.Fprintln(w, cmd.Example)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(output))
	})
	fmt.Fprintln(w)
}
