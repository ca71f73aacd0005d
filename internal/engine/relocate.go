package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/scocto/scoctoloc/internal/geo"
	"github.com/scocto/scoctoloc/internal/model"
)

// DepthConstraint tells the relocator whether to solve for depth.
type DepthConstraint struct {
	// Fixed holds the depth at Depth when true.
	Fixed bool
	// Depth in km, used only when Fixed.
	Depth float64
}

// FreeDepth leaves depth unconstrained.
var FreeDepth = DepthConstraint{}

// Relocator is the relocation engine.
type Relocator interface {
	Relocate(ctx context.Context, origin model.Origin, depth DepthConstraint) (model.Origin, error)
}

// relocationState is a step of the depth fallback state machine.
type relocationState int

const (
	stateFreeDepth relocationState = iota
	stateFixedDepth
	stateDone
)

// DefaultMinDepth is the default depth floor in km.
const DefaultMinDepth = 1.0

// Quality computation thresholds.
const (
	qualityMaxDelta  = 180.0
	qualityMinWeight = 0.5
)

// RelocationController refines association origins with the relocation
// engine. A free-depth solution shallower than the depth floor is retried
// once with depth fixed at the floor; there is never a second retry.
type RelocationController struct {
	relocator Relocator
	minDepth  float64
	methodID  string
}

// NewRelocationController creates a controller. Relocated origins without
// a method ID are tagged methodID; identifiers are left to the publisher.
func NewRelocationController(r Relocator, minDepth float64, methodID string) *RelocationController {
	return &RelocationController{
		relocator: r,
		minDepth:  minDepth,
		methodID:  methodID,
	}
}

// Relocate runs the state machine for one origin. It returns nil when no
// relocated origin was obtained; the reason is logged.
func (rc *RelocationController) Relocate(ctx context.Context, origin model.Origin) *model.Origin {
	input := origin.Clone()
	for i := range input.Arrivals {
		input.Arrivals[i].Weight = 1
		input.Arrivals[i].Used = true
	}

	var result *model.Origin
	state := stateFreeDepth
	for state != stateDone {
		switch state {
		case stateFreeDepth:
			relocated, err := rc.relocator.Relocate(ctx, *input, FreeDepth)
			if err != nil {
				slog.Warn("relocation failed", "origin", origin.ID, "error", err)
				state = stateDone
				continue
			}
			if relocated.Depth.Value >= rc.minDepth {
				result = &relocated
				state = stateDone
				continue
			}
			slog.Debug("relocated depth shallower than floor, fixing depth",
				"origin", origin.ID,
				"depth", relocated.Depth.Value,
				"min_depth", rc.minDepth,
			)
			state = stateFixedDepth

		case stateFixedDepth:
			relocated, err := rc.relocator.Relocate(ctx, *input, DepthConstraint{Fixed: true, Depth: rc.minDepth})
			if err != nil {
				slog.Warn("fixed-depth relocation failed", "origin", origin.ID, "error", err)
			} else {
				relocated.DepthFixed = true
				result = &relocated
			}
			state = stateDone

		default:
			panic(fmt.Sprintf("relocation: unexpected state %d", state))
		}
	}

	if result == nil {
		return nil
	}
	result.Method = model.MethodRelocation
	if result.MethodID == "" {
		result.MethodID = rc.methodID
	}
	result.Quality = ComputeQuality(result.Arrivals)
	return result
}

// ComputeQuality derives aggregate statistics from arrivals: RMS residual
// of used arrivals, phase counts, distance range and azimuthal gaps.
func ComputeQuality(arrivals []model.Arrival) *model.Quality {
	q := &model.Quality{AssociatedPhaseCount: len(arrivals)}

	var sumSq float64
	var distances, azimuths []float64
	for _, a := range arrivals {
		distances = append(distances, a.Distance)
		if a.Used {
			q.UsedPhaseCount++
			sumSq += a.TimeResidual * a.TimeResidual
		}
		if a.Weight >= qualityMinWeight && a.Distance <= qualityMaxDelta {
			azimuths = append(azimuths, a.Azimuth)
		}
	}
	if q.UsedPhaseCount > 0 {
		q.StandardError = math.Sqrt(sumSq / float64(q.UsedPhaseCount))
	}
	if len(distances) > 0 {
		q.MinimumDistance = distances[0]
		q.MaximumDistance = distances[0]
		for _, d := range distances[1:] {
			q.MinimumDistance = min(q.MinimumDistance, d)
			q.MaximumDistance = max(q.MaximumDistance, d)
		}
		q.MedianDistance = geo.Median(distances)
	}
	q.AzimuthalGap = geo.AzimuthalGap(azimuths)
	q.SecondaryAzimuthalGap = geo.SecondaryAzimuthalGap(azimuths)
	q.TGap = geo.TGap(azimuths)
	return q
}
