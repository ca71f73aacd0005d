package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/octo"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	config configFlags
}

// ValidationResult summarises a valid configuration.
type ValidationResult struct {
	Config        string  `json:"config,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Stations      int     `json:"stations"`
	Whitelist     int     `json:"whitelist_patterns"`
	VelocityModel string  `json:"velocity_model"`
	Engine        string  `json:"engine"`
	Relocation    string  `json:"relocation,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	source := r.Config
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(&b, "✓ configuration valid (%s)\n", source)
	fmt.Fprintf(&b, "  centre      %.4f, %.4f\n", r.Latitude, r.Longitude)
	fmt.Fprintf(&b, "  stations    %d\n", r.Stations)
	if r.Whitelist > 0 {
		fmt.Fprintf(&b, "  whitelist   %d patterns\n", r.Whitelist)
	}
	fmt.Fprintf(&b, "  velocity    %s\n", r.VelocityModel)
	fmt.Fprintf(&b, "  engine      %s", r.Engine)
	if r.Relocation != "" {
		fmt.Fprintf(&b, "\n  relocation  %s", r.Relocation)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, inventory and whitelist",
		Long: `Load the configuration with its command-line overrides, the station
inventory, the stream whitelist and the velocity model, and report the
station selection the engine would be configured with. No engine is
started.

Examples:
  scoctoloc validate --config scoctoloc.cue
  scoctoloc validate --center-latlon 37.5,25.5 --inventory stations.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	addConfigFlags(cmd, &opts.config, true)

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	fail := func(err error) error {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return err
	}

	cfg, err := opts.loadConfig(opts.config.overrides(cmd))
	if err != nil {
		return fail(err)
	}
	velocity, err := octo.NewVelocityModel(cfg.VelocityModel.Constant, cfg.VelocityModel.CSV)
	if err != nil {
		return fail(WrapExitError(ExitCommandError, "invalid velocity model", err))
	}
	net, err := loadNetwork(cfg, time.Time{})
	if err != nil {
		return fail(err)
	}

	result := ValidationResult{
		Config:        opts.Config,
		Latitude:      cfg.Center.Latitude,
		Longitude:     cfg.Center.Longitude,
		Stations:      net.stations.Len(),
		Whitelist:     net.whitelist.Len(),
		VelocityModel: velocity.Kind,
		Engine:        fmt.Sprintf("%s (%s)", cfg.Engine.MethodID, strings.Join(cfg.Engine.Command, " ")),
	}
	if cfg.Relocation.Enabled {
		result.Relocation = cfg.Relocation.MethodID
	}
	return out.Success(result)
}
