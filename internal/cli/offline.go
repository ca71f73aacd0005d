package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
)

// OfflineOptions holds flags for the offline command.
type OfflineOptions struct {
	*RootOptions
	config configFlags
	input  inputFlags
}

// NewOfflineCommand creates the offline command.
func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OfflineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Associate a fixed set of picks in one batch",
		Long: `Associate all picks of a file (or of a database time span) with a single
engine call. There is no trigger pick, so every origin the engine returns
is relocated and written; no deduplication takes place.

Exit codes:
  0 - Batch processed
  1 - The engine failed on the batch
  2 - Command error (bad config, unreadable input, etc.)

Examples:
  scoctoloc offline --config scoctoloc.cue --input picks.yaml --output origins.yaml
  scoctoloc offline --db archive.db --start "2024-03-01 12:00:00" --end "2024-03-01 13:00:00"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffline(cmd.Context(), opts, cmd)
		},
	}

	addConfigFlags(cmd, &opts.config, false)
	addInputFlags(cmd, &opts.input)

	return cmd
}

func runOffline(ctx context.Context, opts *OfflineOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig(opts.config.overrides(cmd))
	if err != nil {
		return err
	}
	picks, err := loadPicks(ctx, cfg, &opts.input)
	if err != nil {
		return err
	}
	net, err := loadNetwork(cfg, firstPickTime(picks))
	if err != nil {
		return err
	}
	engines, err := opts.startEngines(ctx, cfg, net.stations)
	if err != nil {
		return err
	}
	defer engines.Close()

	// Origins are stamped with the newest pick creation time so a batch
	// over the same file always produces the same output.
	clock := engine.NewPlaybackClock(false)
	for _, p := range picks {
		clock.Observe(p)
	}
	collector := &engine.Collector{}
	pipeline, err := newPipeline(pipelineParts{
		cfg:     cfg,
		network: net,
		engines: engines,
		publisher: engine.PublisherConfig{
			Mode:      engine.ModeOffline,
			IDs:       engine.NewSequenceGenerator(0),
			Collector: collector,
		},
		debug: opts.Debug,
	}, engine.WithClock(clock))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}

	result := pipeline.RunBatch(ctx, picks)
	origins := collector.Origins()

	summary, err := newSummary(engine.ModeOffline, len(picks), []engine.Result{result}, origins)
	if err != nil {
		return err
	}
	if opts.input.output != "" {
		if err := writeOutput(opts.input.output, picks, origins); err != nil {
			return err
		}
		summary.Output = opts.input.output
	}

	out := opts.formatter(cmd)
	if result.Outcome == engine.OutcomeEngineFailure {
		if err := out.Failure(CodeEngine, result.Err.Error(), summary); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "association failed", result.Err)
	}
	return out.Success(summary)
}

// firstPickTime is the earliest arrival time, or zero without picks.
func firstPickTime(picks []model.Pick) time.Time {
	var first time.Time
	for _, p := range picks {
		if first.IsZero() || p.Time.Before(first) {
			first = p.Time
		}
	}
	return first
}
