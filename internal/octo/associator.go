package octo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scocto/scoctoloc/internal/model"
)

// Associator runs association through an engine worker. It implements
// engine.Associator.
//
// The picks of the most recent batch are kept so that the relocator can
// resolve the arrivals of origins nucleated from it.
type Associator struct {
	worker   *Worker
	methodID string
	stations *model.StationTable

	mu   sync.Mutex
	last map[string]model.Pick
}

// NewAssociator creates an associator. The worker must have been
// configured with the same station table.
func NewAssociator(w *Worker, methodID string, stations *model.StationTable) *Associator {
	return &Associator{
		worker:   w,
		methodID: methodID,
		stations: stations,
		last:     make(map[string]model.Pick),
	}
}

// Associate sends the batch to the engine and converts the events it
// nucleated into association origins.
func (a *Associator) Associate(ctx context.Context, picks []model.Pick) ([]model.Origin, error) {
	index := make(map[string]model.Pick, len(picks))
	body := associateBody{Picks: make([]wirePick, 0, len(picks))}
	for _, p := range picks {
		index[p.ID] = p
		body.Picks = append(body.Picks, toWirePick(p))
	}

	a.mu.Lock()
	a.last = index
	a.mu.Unlock()

	var result associateResult
	if err := a.worker.Call(ctx, opAssociate, body, &result); err != nil {
		return nil, fmt.Errorf("associate %d picks: %w", len(picks), err)
	}
	if len(result.Events) == 0 {
		slog.Debug("no origins", "picks", len(picks))
		return nil, nil
	}

	origins := make([]model.Origin, 0, len(result.Events))
	for _, ev := range result.Events {
		o := toOrigin(ev, index, a.stations)
		o.Method = model.MethodAssociation
		o.MethodID = a.methodID
		if len(o.Arrivals) == 0 {
			continue
		}
		origins = append(origins, o)
	}
	slog.Debug("generated origins", "origins", len(origins), "picks", len(picks))
	return origins, nil
}

// Lookup returns picks of the most recent batch by ID.
func (a *Associator) Lookup(ids []string) map[string]model.Pick {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]model.Pick, len(ids))
	for _, id := range ids {
		if p, ok := a.last[id]; ok {
			out[id] = p
		}
	}
	return out
}
