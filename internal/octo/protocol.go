package octo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/scocto/scoctoloc/internal/geo"
	"github.com/scocto/scoctoloc/internal/model"
)

// Operation names.
const (
	opConfigure = "configure"
	opAssociate = "associate"
	opRelocate  = "relocate"
)

// Engine search defaults.
const (
	DefaultPickMatchTolerance = 6.0   // s
	DefaultTimeBefore         = 300.0 // s
)

// MinPicks holds the engine's per-phase pick-count minima.
type MinPicks struct {
	P     int `msgpack:"p"`
	S     int `msgpack:"s"`
	PAndS int `msgpack:"p_and_s"`
	POrS  int `msgpack:"p_or_s"`
}

// Setup is the configure handshake: search volume, velocity model and the
// station table.
type Setup struct {
	CenterLatitude  float64
	CenterLongitude float64
	MaxDistanceKm   float64
	MinDepth        float64
	MaxDepth        float64
	MinPicks        MinPicks
	Velocity        VelocityModel
	Stations        *model.StationTable

	// DebugDir asks the engine to dump its inputs there.
	DebugDir string
}

type wireStation struct {
	ID        string  `msgpack:"id"`
	Latitude  float64 `msgpack:"latitude"`
	Longitude float64 `msgpack:"longitude"`
	Elevation float64 `msgpack:"elevation"`
}

type configureBody struct {
	Center             [2]float64    `msgpack:"center"`
	MaxDistance        float64       `msgpack:"max_distance"`
	DepthLimits        [2]float64    `msgpack:"depth_limits"`
	MinPicks           MinPicks      `msgpack:"min_picks"`
	PickMatchTolerance float64       `msgpack:"pick_match_tolerance"`
	TimeBefore         float64       `msgpack:"time_before"`
	Velocity           VelocityModel `msgpack:"velocity_model"`
	Stations           []wireStation `msgpack:"stations"`
	DebugDir           string        `msgpack:"debug_dir,omitempty"`
}

type wirePick struct {
	ID      string  `msgpack:"id"`
	Station string  `msgpack:"station"`
	Phase   string  `msgpack:"phase"`
	Time    float64 `msgpack:"time"`
}

type wireAssignment struct {
	PickID   string   `msgpack:"pick_id"`
	Phase    string   `msgpack:"phase"`
	Residual float64  `msgpack:"residual"`
	Weight   *float64 `msgpack:"weight,omitempty"`
	Used     *bool    `msgpack:"used,omitempty"`
}

type wireEvent struct {
	Time           float64          `msgpack:"time"`
	Latitude       float64          `msgpack:"latitude"`
	Longitude      float64          `msgpack:"longitude"`
	Depth          float64          `msgpack:"depth"`
	LatitudeError  float64          `msgpack:"latitude_error,omitempty"`
	LongitudeError float64          `msgpack:"longitude_error,omitempty"`
	DepthError     float64          `msgpack:"depth_error,omitempty"`
	DepthFixed     bool             `msgpack:"depth_fixed,omitempty"`
	Picks          []wireAssignment `msgpack:"picks"`
}

type associateBody struct {
	Picks []wirePick `msgpack:"picks"`
}

type associateResult struct {
	Events []wireEvent `msgpack:"events"`
}

type relocateBody struct {
	Origin     wireEvent  `msgpack:"origin"`
	Picks      []wirePick `msgpack:"picks"`
	FixedDepth *float64   `msgpack:"fixed_depth,omitempty"`
}

type relocateResult struct {
	Origin *wireEvent `msgpack:"origin"`
}

// Configure sends the setup to the engine behind w.
func Configure(ctx context.Context, w *Worker, s Setup) error {
	if s.Stations == nil || s.Stations.Len() == 0 {
		return fmt.Errorf("engine %s: no stations configured", w.Name())
	}
	body := configureBody{
		Center:             [2]float64{s.CenterLatitude, s.CenterLongitude},
		MaxDistance:        s.MaxDistanceKm,
		DepthLimits:        [2]float64{s.MinDepth, s.MaxDepth},
		MinPicks:           s.MinPicks,
		PickMatchTolerance: DefaultPickMatchTolerance,
		TimeBefore:         DefaultTimeBefore,
		Velocity:           s.Velocity,
		DebugDir:           s.DebugDir,
	}
	for _, st := range s.Stations.Stations() {
		body.Stations = append(body.Stations, wireStation{
			ID:        st.NSL(),
			Latitude:  st.Latitude,
			Longitude: st.Longitude,
			Elevation: st.Elevation,
		})
	}
	if err := w.Call(ctx, opConfigure, body, nil); err != nil {
		return err
	}
	slog.Info("engine configured",
		"worker", w.Name(),
		"stations", len(body.Stations),
		"velocity_model", s.Velocity.Kind,
		"max_distance", s.MaxDistanceKm,
	)
	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// fromEpoch converts engine times, rounded to the microsecond.
func fromEpoch(s float64) time.Time {
	us := int64(math.Round(s * 1e6))
	return time.UnixMicro(us).UTC()
}

func toWirePick(p model.Pick) wirePick {
	return wirePick{
		ID:      p.ID,
		Station: p.Stream.NSL(),
		Phase:   p.Phase(),
		Time:    epochSeconds(p.Time),
	}
}

func toWireEvent(o model.Origin) wireEvent {
	ev := wireEvent{
		Time:           epochSeconds(o.Time),
		Latitude:       o.Latitude.Value,
		Longitude:      o.Longitude.Value,
		Depth:          o.Depth.Value,
		LatitudeError:  o.Latitude.Uncertainty,
		LongitudeError: o.Longitude.Uncertainty,
		DepthError:     o.Depth.Uncertainty,
		DepthFixed:     o.DepthFixed,
	}
	for _, a := range o.Arrivals {
		weight, used := a.Weight, a.Used
		ev.Picks = append(ev.Picks, wireAssignment{
			PickID:   a.PickID,
			Phase:    a.Phase,
			Residual: a.TimeResidual,
			Weight:   &weight,
			Used:     &used,
		})
	}
	return ev
}

// toOrigin converts an engine event. Arrival distance and azimuth are
// computed from the origin to the pick's station. Assignments of unknown
// picks are dropped.
func toOrigin(ev wireEvent, picks map[string]model.Pick, stations *model.StationTable) model.Origin {
	o := model.Origin{
		Time:             fromEpoch(ev.Time),
		Latitude:         model.Quantity{Value: ev.Latitude, Uncertainty: ev.LatitudeError},
		Longitude:        model.Quantity{Value: ev.Longitude, Uncertainty: ev.LongitudeError},
		Depth:            model.Quantity{Value: ev.Depth, Uncertainty: ev.DepthError},
		DepthFixed:       ev.DepthFixed,
		EvaluationStatus: model.StatusPreliminary,
	}
	for _, as := range ev.Picks {
		p, ok := picks[as.PickID]
		if !ok {
			slog.Warn("engine assigned unknown pick", "pick", as.PickID)
			continue
		}
		arr := model.Arrival{
			PickID:       as.PickID,
			Phase:        as.Phase,
			TimeResidual: as.Residual,
			Used:         true,
			Weight:       1,
		}
		if arr.Phase == "" {
			arr.Phase = p.Phase()
		}
		if as.Used != nil {
			arr.Used = *as.Used
		}
		if as.Weight != nil {
			arr.Weight = *as.Weight
		}
		if st, ok := stations.Lookup(p.Stream.NSL()); ok {
			arr.Distance, arr.Azimuth, _ = geo.Delazi(ev.Latitude, ev.Longitude, st.Latitude, st.Longitude)
		}
		o.Arrivals = append(o.Arrivals, arr)
	}
	return o
}
