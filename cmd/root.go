// Package cmd defines the harvester CLI: one subcommand per extraction task.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/app"
	"github.com/JakeFAU/worklist-harvester/internal/config"
	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/logging"
	"github.com/JakeFAU/worklist-harvester/internal/progress/sinks"
)

type options struct {
	configPath      string
	input           string
	output          string
	concurrency     int
	checkpointEvery int
	port            int
	dryRun          bool
}

// newRootCmd creates the root command and registers a subcommand per task.
func newRootCmd() *cobra.Command {
	return newRoot(&options{})
}

func newRoot(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Enrich a spreadsheet worklist with text extracted from the web",
		Long: `harvester reads a worklist spreadsheet, runs one extraction task over every
row with a pool of workers, and writes the enriched table back out every few
rows so a long run never loses more than one batch of work.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (env HARVEST_* overrides)")
	flags.StringVarP(&opts.input, "input", "i", "", "worklist spreadsheet (input.path)")
	flags.StringVarP(&opts.output, "output", "o", "", "result spreadsheet (output.path)")
	flags.IntVarP(&opts.concurrency, "concurrency", "c", 0, "worker count (run.concurrency)")
	flags.IntVar(&opts.checkpointEvery, "checkpoint-every", 0, "rows between checkpoints (run.checkpoint_every)")
	flags.IntVar(&opts.port, "port", 0, "status server port (server.port)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "keep checkpoints and notifications in memory (output.dry_run)")

	for _, preset := range app.Presets() {
		cmd.AddCommand(newTaskCmd(preset, opts))
	}
	return cmd
}

func newTaskCmd(preset app.Preset, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   preset.Name,
		Short: preset.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTask(cmd.Context(), preset.Name, opts)
		},
	}
}

func (o *options) apply(cfg *config.Config) {
	if o.input != "" {
		cfg.Input.Path = o.input
	}
	if o.output != "" {
		cfg.Output.Path = o.output
	}
	if o.concurrency > 0 {
		cfg.Run.Concurrency = o.concurrency
	}
	if o.checkpointEvery > 0 {
		cfg.Run.CheckpointEvery = o.checkpointEvery
	}
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if o.dryRun {
		cfg.Output.DryRun = true
	}
}

func runTask(ctx context.Context, task string, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	logger = logger.With(zap.String("task", task), zap.String("run_id", a.RunID().String()))

	table, err := a.Run(ctx, task)
	// Close flushes the progress hub, so the snapshot holds the final checkpoint.
	if cerr := a.Close(ctx); cerr != nil {
		logger.Warn("shutdown incomplete", zap.Error(cerr))
	}
	switch {
	case err == nil:
		logger.Info("results saved",
			zap.String("output", outputName(a.Status(), cfg)),
			zap.Int("rows", table.Len()),
			zap.Bool("dry_run", cfg.Output.DryRun),
		)
		return nil
	case errors.Is(err, context.Canceled):
		logger.Warn("run interrupted; completed rows were saved", zap.Error(err))
		return err
	case errors.Is(err, harvest.ErrSourceUnreadable):
		return fmt.Errorf("read worklist: %w", err)
	default:
		return err
	}
}

// outputName prefers the destination reported by the last checkpoint.
func outputName(snap sinks.Snapshot, cfg config.Config) string {
	if snap.LastDestination != "" {
		return snap.LastDestination
	}
	return cfg.Output.Path
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "harvester:", err)
		return 1
	}
	return 0
}
