package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/testutil"
	"github.com/scocto/scoctoloc/internal/whitelist"
)

// Creation info stamped on scenario origins.
const (
	AgencyID = "TEST"
	Author   = "scoctoloc"
)

// Harness holds the pipeline assembled for one scenario.
type Harness struct {
	scenario *Scenario
	filter   *engine.StreamFilter
	pipeline *engine.Pipeline
	clock    *engine.PlaybackClock
	output   *engine.Collector
}

// New assembles a playback pipeline for the scenario.
func New(s *Scenario) (*Harness, error) {
	stations := testutil.Stations(s.Stations.Count, s.Stations.Latitude, s.Stations.Longitude)
	table := model.NewStationTable(stations, s.Config.Authors)

	var streams engine.StreamMatcher
	if s.Config.Whitelist != "" {
		wl, err := whitelist.Parse(s.Config.Whitelist)
		if err != nil {
			return nil, fmt.Errorf("config.whitelist: %w", err)
		}
		streams = wl
	}
	filter := engine.NewStreamFilter(s.Config.Authors, streams, table)

	clusters := make(map[string]model.Origin, len(s.Engine.Clusters))
	for key, h := range s.Engine.Clusters {
		clusters[key] = testutil.Origin(key, seconds(h.Time), h.Latitude, h.Longitude, h.Depth)
	}
	associator := &testutil.ClusterAssociator{MinPicks: s.Engine.MinPicks, Clusters: clusters}

	ids := engine.NewSequenceGenerator(0)
	output := &engine.Collector{}
	publisher, err := engine.NewPublisher(engine.PublisherConfig{
		Mode:      engine.ModePlayback,
		AgencyID:  AgencyID,
		Author:    Author,
		IDs:       ids,
		Collector: output,
	})
	if err != nil {
		return nil, err
	}

	clock := engine.NewPlaybackClock(s.Config.UsePickTime)
	opts := []engine.Option{engine.WithClock(clock)}
	if r := s.Relocation; r != nil {
		minDepth := r.MinDepth
		if minDepth <= 0 {
			minDepth = engine.DefaultMinDepth
		}
		relocator := &depthRelocator{depth: r.Depth}
		opts = append(opts, engine.WithRelocation(engine.NewRelocationController(relocator, minDepth, r.MethodID)))
	}

	cfg := engine.Config{
		Delay:                   seconds(s.Config.Delay),
		BaseWindow:              seconds(s.Config.BaseWindow),
		MinPickCount:            s.Config.MinPickCount,
		DiscardAssociatorOrigin: s.Config.DiscardAssociatorOrigin,
	}
	pipeline, err := engine.New(cfg, filter, associator, publisher, opts...)
	if err != nil {
		return nil, err
	}

	return &Harness{
		scenario: s,
		filter:   filter,
		pipeline: pipeline,
		clock:    clock,
		output:   output,
	}, nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh pipeline, so results are independent of
// earlier runs.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	h, err := New(s)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx)
}

// Run plays the scenario picks back and evaluates the assertions.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	picks := h.scenario.BuildPicks()
	result := NewResult()

	for _, p := range picks {
		if ok, _ := h.filter.Accept(p); !ok {
			result.Rejected = append(result.Rejected, p.ID)
		}
	}

	for _, r := range engine.Playback(ctx, h.pipeline, h.clock, picks) {
		rec := TriggerRecord{Pick: r.PickID, Outcome: string(r.Outcome)}
		for _, o := range r.Origins {
			rec.Origins = append(rec.Origins, o.ID)
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		result.Triggers = append(result.Triggers, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Origins = h.output.Origins()
	for _, event := range h.pipeline.Catalog().Events() {
		for m := model.Method(0); m < model.MethodCount; m++ {
			for _, o := range event.History(m) {
				result.OriginEvents[o.ID] = event.Key
			}
		}
	}
	result.Events = h.pipeline.Catalog().Len()

	digest, err := model.SequenceDigest(result.Origins)
	if err != nil {
		return nil, err
	}
	result.Digest = digest

	for i, a := range h.scenario.Assertions {
		if err := Evaluate(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// BuildPicks converts the scenario pick steps to picks.
func (s *Scenario) BuildPicks() []model.Pick {
	picks := make([]model.Pick, len(s.Picks))
	for i, step := range s.Picks {
		p := testutil.Pick(step.ID, step.Station, seconds(step.Time), seconds(step.Latency))
		if step.Network != "" {
			p.Stream.Network = step.Network
		}
		if step.Channel != "" {
			p.Stream.Channel = step.Channel
		}
		if step.Author != "" {
			p.Author = step.Author
		}
		picks[i] = p
	}
	return picks
}

// depthRelocator is the scripted relocation engine: it returns the origin
// unchanged except for its depth, which is the constraint's depth when
// fixed and the scripted depth otherwise.
type depthRelocator struct {
	depth float64
}

func (r *depthRelocator) Relocate(_ context.Context, origin model.Origin, depth engine.DepthConstraint) (model.Origin, error) {
	out := *origin.Clone()
	out.ID = ""
	out.MethodID = ""
	out.Depth = model.Quantity{Value: r.depth}
	if depth.Fixed {
		out.Depth = model.Quantity{Value: depth.Depth}
	}
	return out, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
