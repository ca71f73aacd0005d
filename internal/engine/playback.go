package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/scocto/scoctoloc/internal/model"
)

// Playback replays historical picks through p as the live system would
// have seen them. Picks are fed one at a time ordered by creation time (or
// arrival time when the clock uses pick time); after each pick the clock
// advances and the scheduler ticks. Once all picks are fed the clock is
// advanced until every pending pick has been released.
//
// p must have been built WithClock(clock).
func Playback(ctx context.Context, p *Pipeline, clock *PlaybackClock, picks []model.Pick) []Result {
	ordered := slices.Clone(picks)
	slices.SortStableFunc(ordered, func(a, b model.Pick) int {
		if c := clock.PickTime(a).Compare(clock.PickTime(b)); c != 0 {
			return c
		}
		return comparePicks(a, b)
	})

	var results []Result
	for _, pick := range ordered {
		if ctx.Err() != nil {
			return results
		}
		clock.Observe(pick)
		slog.Debug("playback time", "now", model.FormatTime(clock.Now(), 3))
		p.Feed(ctx, pick)
		results = append(results, p.Tick(ctx)...)
	}

	// Flush: release whatever the input ended too early to release.
	if horizon, ok := p.Scheduler().Horizon(); ok {
		clock.AdvanceTo(horizon)
		results = append(results, p.Tick(ctx)...)
	}
	return results
}

// Published returns the origins of all published results, in order.
func Published(results []Result) []model.Origin {
	var out []model.Origin
	for _, r := range results {
		if r.Outcome == OutcomePublished {
			out = append(out, r.Origins...)
		}
	}
	return out
}
