package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/store"
)

// PlaybackOptions holds flags for the playback command.
type PlaybackOptions struct {
	*RootOptions
	config      configFlags
	input       inputFlags
	UsePickTime bool
	Archive     bool
}

// NewPlaybackCommand creates the playback command.
func NewPlaybackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaybackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "playback",
		Short: "Replay historical picks as the live pipeline would have seen them",
		Long: `Feed historical picks through the pipeline in creation-time order. The
pipeline clock follows the picks, so delays, windows and deduplication
behave as they did live and the published origin sequence is
reproducible.

Examples:
  scoctoloc playback --config scoctoloc.cue --input picks.yaml --output origins.yaml
  scoctoloc playback --db archive.db --start 2024-03-01T12:00:00Z --end 2024-03-01T13:00:00Z --archive
  scoctoloc playback --input picks.json --use-pick-time --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaybackCommand(cmd.Context(), opts, cmd)
		},
	}

	addConfigFlags(cmd, &opts.config, false)
	addInputFlags(cmd, &opts.input)
	cmd.Flags().BoolVar(&opts.UsePickTime, "use-pick-time", false, "drive the clock by pick time instead of creation time")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "archive published origins in the database")

	return cmd
}

func runPlaybackCommand(ctx context.Context, opts *PlaybackOptions, cmd *cobra.Command) error {
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

	var archive engine.Archive
	if opts.Archive {
		if cfg.Database == "" {
			return NewExitError(ExitCommandError, "--archive needs a database (--db or config database)")
		}
		st, err := store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		archive = st
	}

	run, err := playback(ctx, playbackInput{
		cfg:         cfg,
		network:     net,
		engines:     engines,
		picks:       picks,
		usePickTime: opts.UsePickTime,
		archive:     archive,
		debug:       opts.Debug,
	})
	if err != nil {
		return err
	}

	summary, err := newSummary(engine.ModePlayback, len(picks), run.results, run.origins)
	if err != nil {
		return err
	}
	summary.Events = run.events
	if opts.input.output != "" {
		if err := writeOutput(opts.input.output, picks, run.origins); err != nil {
			return err
		}
		summary.Output = opts.input.output
	}
	return opts.formatter(cmd).Success(summary)
}

type playbackInput struct {
	cfg         *config.Config
	network     *network
	engines     *Engines
	picks       []model.Pick
	usePickTime bool
	archive     engine.Archive
	debug       bool
}

type playbackRun struct {
	results []engine.Result
	origins []model.Origin
	events  int
}

// playback runs one playback on a fresh pipeline. Identifiers restart at
// one every run.
func playback(ctx context.Context, in playbackInput) (*playbackRun, error) {
	clock := engine.NewPlaybackClock(in.usePickTime)
	collector := &engine.Collector{}
	pipeline, err := newPipeline(pipelineParts{
		cfg:     in.cfg,
		network: in.network,
		engines: in.engines,
		publisher: engine.PublisherConfig{
			Mode:      engine.ModePlayback,
			IDs:       engine.NewSequenceGenerator(0),
			Collector: collector,
			Archive:   in.archive,
		},
		debug: in.debug,
	}, engine.WithClock(clock))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}

	results := engine.Playback(ctx, pipeline, clock, in.picks)
	if err := ctx.Err(); err != nil {
		return nil, WrapExitError(ExitFailure, "playback interrupted", err)
	}
	origins := collector.Origins()
	slog.Info("playback finished",
		"picks", len(in.picks),
		"triggers", len(results),
		"origins", len(origins),
		"events", pipeline.Catalog().Len(),
	)
	return &playbackRun{
		results: results,
		origins: origins,
		events:  pipeline.Catalog().Len(),
	}, nil
}
