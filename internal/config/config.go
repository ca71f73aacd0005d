// Package config loads pipeline configuration from CUE, YAML or JSON
// files. Every file is unified with the embedded CUE schema, which
// supplies defaults and range constraints; command-line overrides are
// applied on top.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// LatLon is a geographic point in degrees.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MinPickCount holds the association engine's pick-count minima.
type MinPickCount struct {
	P     int `json:"p"`
	S     int `json:"s"`
	PAndS int `json:"pAndS"`
	POrS  int `json:"pOrS"`
}

// VelocityModel selects either a constant model or a layered CSV model.
type VelocityModel struct {
	Constant string `json:"constant,omitempty"`
	CSV      string `json:"csv,omitempty"`
}

// Engine configures the association engine worker.
type Engine struct {
	Command  []string `json:"command"`
	MethodID string   `json:"methodID"`
}

// Relocation configures the relocation stage.
type Relocation struct {
	Enabled                 bool     `json:"enabled"`
	Command                 []string `json:"command,omitempty"`
	MethodID                string   `json:"methodID"`
	DiscardAssociatorOrigin bool     `json:"discardAssociatorOrigin"`
}

// Retention bounds how long picks and events are remembered.
type Retention struct {
	Horizon float64 `json:"horizon"`
}

// Publish holds the creation info stamped on published origins.
type Publish struct {
	AgencyID string `json:"agencyID"`
	Author   string `json:"author"`
}

// Messaging configures the MQTT transport.
type Messaging struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"clientID"`
	PickTopic   string `json:"pickTopic"`
	OriginTopic string `json:"originTopic"`
	QoS         int    `json:"qos"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Metrics configures the optional OTLP metric exporter.
type Metrics struct {
	OTLPEndpoint string  `json:"otlpEndpoint,omitempty"`
	Interval     float64 `json:"interval"`
}

// Config is the decoded pipeline configuration.
type Config struct {
	Center        *LatLon       `json:"center,omitempty"`
	MaxDistance   float64       `json:"maxDistance"`
	MaxDepth      float64       `json:"maxDepth"`
	MinDepth      float64       `json:"minDepth"`
	PickAuthors   []string      `json:"pickAuthors"`
	Whitelist     string        `json:"whitelist,omitempty"`
	Inventory     string        `json:"inventory,omitempty"`
	Delay         float64       `json:"delay"`
	BaseWindow    float64       `json:"baseWindow"`
	TickInterval  float64       `json:"tickInterval"`
	MinPickCount  MinPickCount  `json:"minPickCount"`
	VelocityModel VelocityModel `json:"velocityModel"`
	Engine        Engine        `json:"engine"`
	Relocation    Relocation    `json:"relocation"`
	Retention     Retention     `json:"retention"`
	Publish       Publish       `json:"publish"`
	Messaging     Messaging     `json:"messaging"`
	Database      string        `json:"database,omitempty"`
	Metrics       Metrics       `json:"metrics"`
}

// ErrCenterUnset is returned by Validate when no network centre is set.
var ErrCenterUnset = errors.New("network center must be specified")

// ErrConflictingVelocityModel is returned by Validate when both a constant
// and a layered velocity model are configured.
var ErrConflictingVelocityModel = errors.New("velocity model: constant and csv are mutually exclusive")

// Default returns the schema defaults.
func Default() (*Config, error) {
	return decode(func(ctx *cue.Context) cue.Value {
		return ctx.CompileString("{}")
	})
}

// Load reads a configuration file. The format follows the extension:
// .cue, .yaml/.yml or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration source. filename selects the format.
func Parse(data []byte, filename string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".cue":
		return decode(func(ctx *cue.Context) cue.Value {
			return ctx.CompileBytes(data, cue.Filename(filename))
		})
	case ".yaml", ".yml", ".json":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		return decode(func(ctx *cue.Context) cue.Value {
			return ctx.Encode(doc)
		})
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(filename))
	}
}

// decode unifies the value built by source with #Config and decodes the
// concrete result.
func decode(source func(*cue.Context) cue.Value) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := source(ctx)
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("failed to build config: %s", cueerrors.Details(err, nil))
	}

	value := def.Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the conditions that must hold before the pipeline is
// built. The schema covers ranges; this covers cross-field rules.
func (c *Config) Validate() error {
	if c.Center == nil {
		return ErrCenterUnset
	}
	if c.VelocityModel.Constant != "" && c.VelocityModel.CSV != "" {
		return ErrConflictingVelocityModel
	}
	if c.MinDepth >= c.MaxDepth {
		return fmt.Errorf("minDepth %.1f must be below maxDepth %.1f", c.MinDepth, c.MaxDepth)
	}
	if len(c.Engine.Command) == 0 {
		return errors.New("engine.command must not be empty")
	}
	return nil
}

// DelayDuration returns the scheduler delay.
func (c *Config) DelayDuration() time.Duration { return seconds(c.Delay) }

// BaseWindowDuration returns the fixed part of the trigger window.
func (c *Config) BaseWindowDuration() time.Duration { return seconds(c.BaseWindow) }

// TickDuration returns the online scheduler tick interval.
func (c *Config) TickDuration() time.Duration { return seconds(c.TickInterval) }

// RetentionHorizon returns the configured retention horizon.
func (c *Config) RetentionHorizon() time.Duration { return seconds(c.Retention.Horizon) }

// MetricsInterval returns the OTLP export interval.
func (c *Config) MetricsInterval() time.Duration { return seconds(c.Metrics.Interval) }

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// ParseLatLon parses "lat,lon".
func ParseLatLon(s string) (LatLon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLon{}, fmt.Errorf("invalid lat,lon %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return LatLon{}, fmt.Errorf("lat,lon %q out of range", s)
	}
	return LatLon{Latitude: lat, Longitude: lon}, nil
}

// Overrides carries command-line values that take precedence over the
// file. Nil and empty fields leave the file value in place.
type Overrides struct {
	Center        string
	MaxDistance   *float64
	MaxDepth      *float64
	Delay         *float64
	PickAuthors   string
	Whitelist     string
	Inventory     string
	VelocityModel string
	ModelCSV      string
	Database      string
	Broker        string
}

// Apply merges overrides into c.
func (c *Config) Apply(o Overrides) error {
	if o.Center != "" {
		center, err := ParseLatLon(o.Center)
		if err != nil {
			return err
		}
		c.Center = &center
	}
	if o.MaxDistance != nil {
		c.MaxDistance = *o.MaxDistance
	}
	if o.MaxDepth != nil {
		c.MaxDepth = *o.MaxDepth
	}
	if o.Delay != nil {
		if *o.Delay < 0 {
			return fmt.Errorf("delay must not be negative")
		}
		c.Delay = *o.Delay
	}
	if o.PickAuthors != "" {
		c.PickAuthors = strings.Fields(strings.ReplaceAll(o.PickAuthors, ",", " "))
	}
	setIf(&c.Whitelist, o.Whitelist)
	setIf(&c.Inventory, o.Inventory)
	setIf(&c.VelocityModel.Constant, o.VelocityModel)
	setIf(&c.VelocityModel.CSV, o.ModelCSV)
	setIf(&c.Database, o.Database)
	setIf(&c.Messaging.Broker, o.Broker)
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
