package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/observability"
	"github.com/scocto/scoctoloc/internal/store"
	"github.com/scocto/scoctoloc/internal/transport"
)

// Transport is the online message bus connection: pick intake and origin
// delivery. *transport.MQTT implements it.
type Transport interface {
	engine.Transport
	Connect(ctx context.Context) error
	Subscribe(sink transport.PickSink) error
	Close()
}

// TransportFactory creates the online transport.
type TransportFactory func(cfg transport.Config) Transport

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	config configFlags
	Test   bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the online pipeline against the message broker",
		Long: `Start the online pipeline. Picks are received from the broker's pick
topic, held for the configured delay, associated, relocated and
deduplicated; published origins are sent to the origin topic.

With a database configured, every accepted pick and every published
origin is archived there for later offline processing and playback.

Example:
  scoctoloc run --config scoctoloc.cue
  scoctoloc run --config scoctoloc.cue --broker tcp://broker:1883 --db archive.db
  scoctoloc run --config scoctoloc.cue --test --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnline(opts, cmd)
		},
	}

	addConfigFlags(cmd, &opts.config, true)
	cmd.Flags().BoolVar(&opts.Test, "test", false, "test mode: log origins instead of sending them")

	return cmd
}

func runOnline(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(opts.config.overrides(cmd))
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	net, err := loadNetwork(cfg, time.Now())
	if err != nil {
		return err
	}

	metrics, err := observability.New(ctx, observability.Config{
		ServiceName:    "scoctoloc",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Metrics.OTLPEndpoint,
		Interval:       cfg.MetricsInterval(),
		Insecure:       true,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up metrics", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down metrics", "error", err)
		}
	}()

	var st *store.Store
	if cfg.Database != "" {
		slog.Info("opening database", "path", cfg.Database)
		st, err = store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	engines, err := opts.startEngines(ctx, cfg, net.stations)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := engines.Close(); closeErr != nil {
			slog.Error("error stopping engines", "error", closeErr)
		}
	}()

	newTransport := opts.Transport
	if newTransport == nil {
		newTransport = func(c transport.Config) Transport { return transport.New(c) }
	}
	bus := newTransport(transportConfig(cfg))

	pub := engine.PublisherConfig{
		Mode: engine.ModeOnline,
		IDs:  engine.UUIDv7Generator{},
	}
	if opts.Test {
		pub.Mode = engine.ModeTest
	} else {
		pub.Transport = bus
	}
	if st != nil {
		pub.Archive = st
	}
	pipeline, err := newPipeline(pipelineParts{
		cfg:       cfg,
		network:   net,
		engines:   engines,
		publisher: pub,
		debug:     opts.Debug,
	}, engine.WithObserver(metrics))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}

	if err := bus.Connect(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to broker", err)
	}
	defer bus.Close()

	var sink transport.PickSink = pipeline
	if st != nil {
		sink = &archivingSink{next: pipeline, filter: net.filter, store: st}
	}
	if err := bus.Subscribe(sink); err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Pipeline started (%s). Listening for picks on %s...\n", pub.Mode, cfg.Messaging.PickTopic)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "pipeline error", err)
	}

	slog.Info("pipeline stopped gracefully", "events", pipeline.Catalog().Len())
	return nil
}

func transportConfig(cfg *config.Config) transport.Config {
	m := cfg.Messaging
	return transport.Config{
		Broker:      m.Broker,
		ClientID:    m.ClientID,
		PickTopic:   m.PickTopic,
		OriginTopic: m.OriginTopic,
		QoS:         byte(m.QoS),
		Username:    m.Username,
		Password:    m.Password,
	}
}

// archivingSink stores every pick the filter accepts before handing it on,
// so the database holds the input of later offline and playback runs.
type archivingSink struct {
	next   transport.PickSink
	filter *engine.StreamFilter
	store  *store.Store
}

func (s *archivingSink) Enqueue(p model.Pick) bool {
	if ok, _ := s.filter.Accept(p); ok {
		if err := s.store.StorePicks(context.Background(), []model.Pick{p}); err != nil {
			slog.Error("failed to archive pick", "pick", p.ID, "error", err)
		}
	}
	return s.next.Enqueue(p)
}
