package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/inventory"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/octo"
	"github.com/scocto/scoctoloc/internal/whitelist"
)

// Version is stamped into metrics resources. Set at build time.
var Version = "dev"

// configFlags are the command-line overrides shared by the pipeline
// commands. They take precedence over the configuration file.
type configFlags struct {
	center        string
	maxDistance   float64
	maxDepth      float64
	delay         float64
	pickAuthors   string
	whitelist     string
	inventory     string
	velocityModel string
	modelCSV      string
	database      string
	broker        string
}

func addConfigFlags(cmd *cobra.Command, f *configFlags, withBroker bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.center, "center-latlon", "", "network centre as lat,lon")
	flags.Float64Var(&f.maxDistance, "max-distance", 0, "network radius from the centre in km")
	flags.Float64Var(&f.maxDepth, "max-depth", 0, "maximum hypocentre depth in km")
	flags.Float64Var(&f.delay, "delay", 0, "seconds a pick waits before it triggers association")
	flags.StringVar(&f.pickAuthors, "pick-authors", "", "allowed pick authors, comma or space separated")
	flags.StringVar(&f.whitelist, "whitelist", "", "stream whitelist file")
	flags.StringVar(&f.inventory, "inventory", "", "station inventory file")
	flags.StringVar(&f.velocityModel, "velocity-model", "", "constant velocity model vp[,vs[,rh]]")
	flags.StringVar(&f.modelCSV, "model-csv", "", "layered velocity model CSV file")
	flags.StringVar(&f.database, "db", "", "SQLite database path")
	if withBroker {
		flags.StringVar(&f.broker, "broker", "", "MQTT broker URL")
	}
}

func (f *configFlags) overrides(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{
		Center:        f.center,
		PickAuthors:   f.pickAuthors,
		Whitelist:     f.whitelist,
		Inventory:     f.inventory,
		VelocityModel: f.velocityModel,
		ModelCSV:      f.modelCSV,
		Database:      f.database,
		Broker:        f.broker,
	}
	if cmd.Flags().Changed("max-distance") {
		o.MaxDistance = &f.maxDistance
	}
	if cmd.Flags().Changed("max-depth") {
		o.MaxDepth = &f.maxDepth
	}
	if cmd.Flags().Changed("delay") {
		o.Delay = &f.delay
	}
	return o
}

// loadConfig reads the configuration file (or the defaults), applies the
// overrides and validates the result.
func (o *RootOptions) loadConfig(overrides config.Overrides) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.Config != "" {
		cfg, err = config.Load(o.Config)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid command-line option", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// network is the station side of the pipeline: the stations configured
// into the engine and the filter that guards the pick store.
type network struct {
	stations  *model.StationTable
	whitelist *whitelist.Whitelist
	filter    *engine.StreamFilter
}

// loadNetwork reads the inventory and whitelist and selects the stations
// within reach of the network centre that are operational at at.
func loadNetwork(cfg *config.Config, at time.Time) (*network, error) {
	if cfg.Inventory == "" {
		return nil, NewExitError(ExitCommandError, "an inventory is required (--inventory or config inventory)")
	}
	inv, err := inventory.Load(cfg.Inventory)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load inventory", err)
	}

	var wl *whitelist.Whitelist
	if cfg.Whitelist != "" {
		wl, err = whitelist.Load(cfg.Whitelist)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load whitelist", err)
		}
		slog.Info("stream whitelist loaded", "path", cfg.Whitelist, "patterns", wl.Len())
	}

	stations := inv.Select(inventory.Selection{
		CenterLatitude:  cfg.Center.Latitude,
		CenterLongitude: cfg.Center.Longitude,
		MaxDistanceKm:   cfg.MaxDistance,
		Whitelist:       wl,
		At:              at,
	})
	if len(stations) == 0 {
		return nil, NewExitError(ExitCommandError, "no inventory station within reach of the network centre")
	}
	table := model.NewStationTable(stations, cfg.PickAuthors)
	slog.Info("stations selected", "stations", table.Len(), "max_distance", cfg.MaxDistance)

	var streams engine.StreamMatcher
	if wl != nil {
		streams = wl
	}
	return &network{
		stations:  table,
		whitelist: wl,
		filter:    engine.NewStreamFilter(cfg.PickAuthors, streams, table),
	}, nil
}

// Engines holds the association engine and, when relocation is enabled,
// the relocation engine.
type Engines struct {
	Associator engine.Associator
	Relocator  engine.Relocator // nil disables relocation

	closers []io.Closer
}

// NewEngines bundles engines with the resources to release on Close.
func NewEngines(a engine.Associator, r engine.Relocator, closers ...io.Closer) *Engines {
	return &Engines{Associator: a, Relocator: r, closers: closers}
}

// Close releases the engine resources.
func (e *Engines) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// EngineFactory starts the engines for a station table.
type EngineFactory func(ctx context.Context, cfg *config.Config, stations *model.StationTable) (*Engines, error)

// StartEngines spawns the engine worker processes from the configuration
// and sends each the configure handshake. Relocation shares the
// association worker unless relocation.command names its own.
func StartEngines(ctx context.Context, cfg *config.Config, stations *model.StationTable) (*Engines, error) {
	velocity, err := octo.NewVelocityModel(cfg.VelocityModel.Constant, cfg.VelocityModel.CSV)
	if err != nil {
		return nil, err
	}
	setup := octo.Setup{
		CenterLatitude:  cfg.Center.Latitude,
		CenterLongitude: cfg.Center.Longitude,
		MaxDistanceKm:   cfg.MaxDistance,
		MinDepth:        cfg.MinDepth,
		MaxDepth:        cfg.MaxDepth,
		MinPicks: octo.MinPicks{
			P:     cfg.MinPickCount.P,
			S:     cfg.MinPickCount.S,
			PAndS: cfg.MinPickCount.PAndS,
			POrS:  cfg.MinPickCount.POrS,
		},
		Velocity: velocity,
		Stations: stations,
	}

	worker, err := octo.Start(ctx, "associator", cfg.Engine.Command)
	if err != nil {
		return nil, err
	}
	engines := NewEngines(nil, nil, worker)
	if err := octo.Configure(ctx, worker, setup); err != nil {
		engines.Close()
		return nil, err
	}
	associator := octo.NewAssociator(worker, cfg.Engine.MethodID, stations)
	engines.Associator = associator

	if !cfg.Relocation.Enabled {
		return engines, nil
	}
	relocation := worker
	if len(cfg.Relocation.Command) > 0 {
		relocation, err = octo.Start(ctx, "relocator", cfg.Relocation.Command)
		if err != nil {
			engines.Close()
			return nil, err
		}
		engines.closers = append(engines.closers, relocation)
		if err := octo.Configure(ctx, relocation, setup); err != nil {
			engines.Close()
			return nil, err
		}
	}
	engines.Relocator = octo.NewRelocator(relocation, cfg.Relocation.MethodID, associator, stations)
	return engines, nil
}

func (o *RootOptions) startEngines(ctx context.Context, cfg *config.Config, stations *model.StationTable) (*Engines, error) {
	factory := o.Engines
	if factory == nil {
		factory = StartEngines
	}
	engines, err := factory(ctx, cfg, stations)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	return engines, nil
}

// pipelineParts are the collaborators a pipeline is assembled from.
type pipelineParts struct {
	cfg       *config.Config
	network   *network
	engines   *Engines
	publisher engine.PublisherConfig
	debug     bool
}

// newPipeline assembles the pipeline. The publisher's identifier generator
// also names relocated origins.
func newPipeline(parts pipelineParts, opts ...engine.Option) (*engine.Pipeline, error) {
	cfg := parts.cfg
	pub := parts.publisher
	pub.AgencyID = cfg.Publish.AgencyID
	pub.Author = cfg.Publish.Author
	publisher, err := engine.NewPublisher(pub)
	if err != nil {
		return nil, err
	}

	if r := parts.engines.Relocator; r != nil {
		rc := engine.NewRelocationController(r, cfg.MinDepth, cfg.Relocation.MethodID)
		opts = append(opts, engine.WithRelocation(rc))
	}

	return engine.New(engine.Config{
		Delay:                   cfg.DelayDuration(),
		BaseWindow:              cfg.BaseWindowDuration(),
		MinPickCount:            cfg.MinPickCount.P,
		DiscardAssociatorOrigin: cfg.Relocation.DiscardAssociatorOrigin,
		RetentionHorizon:        cfg.RetentionHorizon(),
		TickInterval:            cfg.TickDuration(),
		Debug:                   parts.debug,
	}, parts.network.filter, parts.engines.Associator, publisher, opts...)
}

// parseBound parses a --start/--end value. Empty means unbounded.
func parseBound(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseTime(value)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s", name), err)
	}
	return t, nil
}
