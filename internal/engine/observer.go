package engine

import "context"

// Observer receives pipeline counters. internal/observability implements
// it with OpenTelemetry instruments.
type Observer interface {
	PickAccepted(ctx context.Context)
	PickRejected(ctx context.Context, reason Reason)
	TriggerProcessed(ctx context.Context, outcome Outcome)
	OriginsPublished(ctx context.Context, method string, n int)
	EventCreated(ctx context.Context)
	Evicted(ctx context.Context, picks, events int)
}

// NopObserver discards all counters.
type NopObserver struct{}

func (NopObserver) PickAccepted(context.Context) {}
func (NopObserver) PickRejected(context.Context, Reason) {}
func (NopObserver) TriggerProcessed(context.Context, Outcome) {}
func (NopObserver) OriginsPublished(context.Context, string, int) {}
func (NopObserver) EventCreated(context.Context) {}
func (NopObserver) Evicted(context.Context, int, int) {}
