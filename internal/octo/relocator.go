package octo

import (
	"context"
	"fmt"

	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
)

// PickSource resolves pick IDs. *Associator and *engine.PickStore
// implement it.
type PickSource interface {
	Lookup(ids []string) map[string]model.Pick
}

// Relocator runs relocation through an engine worker. It implements
// engine.Relocator.
type Relocator struct {
	worker   *Worker
	methodID string
	picks    PickSource
	stations *model.StationTable
}

// NewRelocator creates a relocator whose arrivals are resolved through
// picks.
func NewRelocator(w *Worker, methodID string, picks PickSource, stations *model.StationTable) *Relocator {
	return &Relocator{worker: w, methodID: methodID, picks: picks, stations: stations}
}

// Relocate sends the origin and its picks to the engine.
func (r *Relocator) Relocate(ctx context.Context, origin model.Origin, depth engine.DepthConstraint) (model.Origin, error) {
	ids := origin.PickIDs()
	picks := r.picks.Lookup(ids)

	body := relocateBody{Origin: toWireEvent(origin)}
	for _, id := range ids {
		p, ok := picks[id]
		if !ok {
			return model.Origin{}, fmt.Errorf("relocate %s: pick %s unknown", origin.ID, id)
		}
		body.Picks = append(body.Picks, toWirePick(p))
	}
	if depth.Fixed {
		d := depth.Depth
		body.FixedDepth = &d
	}

	var result relocateResult
	if err := r.worker.Call(ctx, opRelocate, body, &result); err != nil {
		return model.Origin{}, fmt.Errorf("relocate %s: %w", origin.ID, err)
	}
	if result.Origin == nil {
		return model.Origin{}, fmt.Errorf("relocate %s: no solution", origin.ID)
	}

	o := toOrigin(*result.Origin, picks, r.stations)
	o.Method = model.MethodRelocation
	o.MethodID = r.methodID
	o.DepthFixed = o.DepthFixed || depth.Fixed
	return o, nil
}
