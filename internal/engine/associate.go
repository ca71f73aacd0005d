package engine

import (
	"context"
	"log/slog"

	"github.com/scocto/scoctoloc/internal/model"
)

// Associator is the association engine: given a batch of picks it returns
// the origins it could nucleate. Station geometry and velocity model are
// configured once at setup.
type Associator interface {
	Associate(ctx context.Context, picks []model.Pick) ([]model.Origin, error)
}

// associate calls the engine for one trigger and keeps only the origins
// that reference the trigger pick. An origin without the trigger was
// nucleated from unrelated nearby picks and carries no news for this
// trigger.
func associate(ctx context.Context, a Associator, trigger model.Pick, batch []model.Pick) ([]model.Origin, error) {
	origins, err := a.Associate(ctx, batch)
	if err != nil {
		return nil, newEngineFailure(trigger.ID, err)
	}

	kept := origins[:0]
	for _, o := range origins {
		if !o.ReferencesPick(trigger.ID) {
			slog.Debug("dismissing origin that does not reference trigger pick",
				"origin", o.ID,
				"pick", trigger.ID,
				"arrivals", len(o.Arrivals),
			)
			continue
		}
		kept = append(kept, o)
	}
	return kept, nil
}
