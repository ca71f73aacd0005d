package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// Config holds the pipeline's tunables.
type Config struct {
	// Delay is the quiescence period before a stored pick is processed.
	Delay time.Duration

	// BaseWindow is the fixed part of the trigger window half-width.
	// Zero selects DefaultBaseWindow.
	BaseWindow time.Duration

	// MinPickCount is the smallest window worth an engine call.
	MinPickCount int

	// DiscardAssociatorOrigin drops an association origin from the output
	// when its relocated sibling exists.
	DiscardAssociatorOrigin bool

	// RetentionHorizon bounds how long picks and events are remembered.
	// It is raised to MinRetention() when shorter.
	RetentionHorizon time.Duration

	// TickInterval is the scheduler period used by Run. Zero selects one
	// second.
	TickInterval time.Duration

	// Debug prints every new origin with its arrivals.
	Debug bool
}

// Result is the processing record of one trigger pick.
type Result struct {
	PickID  string
	Outcome Outcome
	Origins []model.Origin
	Anomaly bool
	Err     error
}

// Pipeline is the single-writer association and deduplication pipeline.
//
// Picks enter through Feed (synchronous) or Enqueue (from any goroutine,
// consumed by Run). Accepted picks are stored and scheduled; Tick releases
// the picks whose delay has elapsed and processes each one in turn through
// windowing, association, relocation, deduplication and publication.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Feed(), Tick(), RunBatch(): not safe concurrently with Run or each other
type Pipeline struct {
	cfg        Config
	filter     *StreamFilter
	store      *PickStore
	scheduler  *Scheduler
	window     *WindowBuilder
	associator Associator
	relocation *RelocationController
	catalog    *Catalog
	publisher  *Publisher
	clock      Clock
	observer   Observer
	queue      *intakeQueue
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithRelocation enables the relocation stage. Without it origins pass
// through unchanged.
func WithRelocation(rc *RelocationController) Option {
	return func(p *Pipeline) {
		p.relocation = rc
	}
}

// WithClock replaces the wall clock, typically with a PlaybackClock.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// New creates a pipeline.
func New(cfg Config, filter *StreamFilter, associator Associator, publisher *Publisher, opts ...Option) (*Pipeline, error) {
	if filter == nil || associator == nil || publisher == nil {
		return nil, fmt.Errorf("pipeline: filter, associator and publisher are required")
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("pipeline: negative delay %s", cfg.Delay)
	}
	if cfg.BaseWindow <= 0 {
		cfg.BaseWindow = DefaultBaseWindow
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	store := NewPickStore()
	p := &Pipeline{
		cfg:        cfg,
		filter:     filter,
		store:      store,
		scheduler:  NewScheduler(cfg.Delay),
		window:     NewWindowBuilder(store, cfg.BaseWindow, cfg.Delay, cfg.MinPickCount),
		associator: associator,
		catalog:    NewCatalog(),
		publisher:  publisher,
		clock:      WallClock{},
		observer:   NopObserver{},
		queue:      newIntakeQueue(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg.RetentionHorizon = max(cfg.RetentionHorizon, p.MinRetention())
	return p, nil
}

// MinRetention is the shortest horizon that still covers a full trigger
// window on both sides plus the event matching time threshold.
func (p *Pipeline) MinRetention() time.Duration {
	return 2*p.window.Width() + MatchMaxTimeSeparation
}

// Store exposes the pick store for inspection.
func (p *Pipeline) Store() *PickStore { return p.store }

// Catalog exposes the event catalog for inspection.
func (p *Pipeline) Catalog() *Catalog { return p.catalog }

// Scheduler exposes the delay scheduler for inspection.
func (p *Pipeline) Scheduler() *Scheduler { return p.scheduler }

// Clock returns the pipeline clock.
func (p *Pipeline) Clock() Clock { return p.clock }

// Enqueue submits a pick for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the pipeline has been stopped.
func (p *Pipeline) Enqueue(pick model.Pick) bool {
	return p.queue.Enqueue(pick)
}

// Stop closes intake. Run returns once queued picks are drained.
func (p *Pipeline) Stop() {
	p.queue.Close()
}

// Run is the online event loop. It serializes picks from Enqueue with a
// periodic scheduler tick. Blocks until the context is cancelled or Stop
// is called.
//
// ERROR HANDLING: per-trigger failures are logged and processing continues.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("pipeline starting",
		"mode", p.publisher.Mode().String(),
		"delay", p.cfg.Delay,
		"window", p.window.Width(),
		"retention", p.cfg.RetentionHorizon,
	)

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if pick, ok := p.queue.TryDequeue(); ok {
			p.Feed(ctx, pick)
			// Keep ticking under a steady pick stream.
			select {
			case <-ticker.C:
				p.Tick(ctx)
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("pipeline stopping: context cancelled")
			p.queue.Close()
			return ctx.Err()

		case <-ticker.C:
			p.Tick(ctx)

		case <-p.queue.Wait():
			// The signal channel is closed with the queue.
			if p.queue.Len() == 0 && p.queue.Closed() {
				slog.Info("pipeline stopping: intake closed")
				return nil
			}
		}
	}
}

// Feed filters a pick and, if accepted, stores and schedules it. Reports
// whether the pick was accepted.
//
// A redelivered pick identical to the stored one is ignored. A changed
// pick replaces the stored one and its pending entry; if it already
// triggered, it is queued again.
func (p *Pipeline) Feed(ctx context.Context, pick model.Pick) bool {
	ok, reason := p.filter.Accept(pick)
	if !ok {
		slog.Debug("pick rejected", "pick", pick.ID, "stream", pick.Stream.String(), "reason", string(reason))
		p.observer.PickRejected(ctx, reason)
		return false
	}

	if old, known := p.store.Get(pick.ID); known && old.Same(pick) {
		slog.Debug("duplicate pick ignored", "pick", pick.ID)
		return true
	}
	if p.store.Store(pick) {
		slog.Debug("pick replaced", "pick", pick.ID)
	}
	if p.scheduler.Push(pick) {
		slog.Debug("pending pick updated", "pick", pick.ID)
	}
	p.observer.PickAccepted(ctx)
	slog.Debug("pick accepted", "pick", pick.ID, "stream", pick.Stream.String(), "time", model.FormatTime(pick.Time, 3))
	return true
}

// Tick processes every pick whose delay has elapsed, in queue order, and
// then evicts picks and events older than the retention horizon.
func (p *Pipeline) Tick(ctx context.Context) []Result {
	now := p.clock.Now()
	due := p.scheduler.Due(now)

	results := make([]Result, 0, len(due))
	for _, pick := range due {
		res := p.process(ctx, pick)
		if res.Err != nil {
			slog.Warn("trigger failed", "pick", pick.ID, "outcome", string(res.Outcome), "error", res.Err)
		}
		p.observer.TriggerProcessed(ctx, res.Outcome)
		if res.Anomaly {
			p.observer.TriggerProcessed(ctx, OutcomeAnomaly)
		}
		results = append(results, res)
	}

	p.evict(ctx, now)
	return results
}

func (p *Pipeline) evict(ctx context.Context, now time.Time) {
	if now.IsZero() {
		return
	}
	cutoff := now.Add(-p.cfg.RetentionHorizon)
	picks := p.store.Evict(cutoff)
	events := p.catalog.Evict(cutoff)
	if picks > 0 || events > 0 {
		slog.Debug("evicted expired state", "picks", picks, "events", events, "cutoff", model.FormatTime(cutoff, 0))
		p.observer.Evicted(ctx, picks, events)
	}
}

// process runs one trigger pick through the pipeline.
func (p *Pipeline) process(ctx context.Context, trigger model.Pick) Result {
	res := Result{PickID: trigger.ID}
	slog.Info("processing pick", "pick", trigger.ID)

	batch, err := p.window.Window(trigger)
	if errors.Is(err, ErrInsufficientPicks) {
		slog.Debug("not enough picks in window", "pick", trigger.ID, "picks", len(batch), "min", p.cfg.MinPickCount)
		res.Outcome = OutcomeInsufficient
		return res
	}
	slog.Debug("picks in window", "pick", trigger.ID, "picks", len(batch))

	origins, err := associate(ctx, p.associator, trigger, batch)
	if err != nil {
		res.Outcome = OutcomeEngineFailure
		res.Err = err
		return res
	}

	now := p.clock.Now()
	var survivors []model.Origin
	for _, origin := range origins {
		p.debugOrigin("new origin", &origin)
		kept, anomaly := p.deduplicate(ctx, p.relocate(ctx, origin))
		res.Anomaly = res.Anomaly || anomaly
		survivors = append(survivors, p.commit(kept, now)...)
	}

	if len(survivors) == 0 {
		res.Outcome = OutcomeNoOrigin
		return res
	}
	res.Origins = survivors

	if err := p.publisher.Deliver(ctx, trigger.ID, survivors); err != nil {
		res.Outcome = OutcomeTransportFailure
		res.Err = err
		return res
	}
	p.countPublished(ctx, survivors)
	res.Outcome = OutcomePublished
	return res
}

// relocate returns the origin group produced by one nucleation: the
// association origin, its relocated sibling, or both.
func (p *Pipeline) relocate(ctx context.Context, origin model.Origin) []model.Origin {
	if p.relocation == nil {
		return []model.Origin{origin}
	}
	relocated := p.relocation.Relocate(ctx, origin)
	if relocated == nil {
		return []model.Origin{origin}
	}
	p.debugOrigin("relocated origin", relocated)
	if p.cfg.DiscardAssociatorOrigin {
		return []model.Origin{*relocated}
	}
	return []model.Origin{origin, *relocated}
}

// decision pairs an origin that survived deduplication with its event.
type decision struct {
	origin model.Origin
	event  *Event
}

// deduplicate decides which origins of one group carry new information.
// A member that matches no event of its own method joins the event its
// sibling matched or created.
func (p *Pipeline) deduplicate(ctx context.Context, group []model.Origin) ([]decision, bool) {
	var kept []decision
	var groupEvent *Event
	anomaly := false

	for _, origin := range group {
		event := p.catalog.Match(&origin)
		if event == nil {
			event = groupEvent
		}
		if event == nil {
			event = p.catalog.NewEvent()
			p.observer.EventCreated(ctx)
			slog.Debug("new event", "event", event.Key, "origin", origin.ID)
		}
		if groupEvent == nil {
			groupEvent = event
		}

		if last := event.Latest(origin.Method); last != nil {
			cmp := CompareOrigins(last, &origin)
			anomaly = anomaly || cmp == ComparisonAnomaly
			if !cmp.Improves() {
				slog.Debug("origin is no improvement, dismissed",
					"origin", origin.ID,
					"event", event.Key,
					"previous", last.ID,
					"comparison", cmp.String(),
				)
				continue
			}
			slog.Debug("origin improves event", "origin", origin.ID, "event", event.Key, "comparison", cmp.String())
		}
		kept = append(kept, decision{origin: origin, event: event})
	}
	return kept, anomaly
}

// commit stamps the kept origins and records them in their events.
func (p *Pipeline) commit(kept []decision, now time.Time) []model.Origin {
	if len(kept) == 0 {
		return nil
	}
	origins := make([]model.Origin, len(kept))
	for i, d := range kept {
		origins[i] = d.origin
	}
	p.publisher.Stamp(origins, now)
	for i, d := range kept {
		p.catalog.Record(d.event, origins[i], now)
	}
	return origins
}

func (p *Pipeline) countPublished(ctx context.Context, origins []model.Origin) {
	counts := make(map[string]int)
	var order []string
	for _, o := range origins {
		if counts[o.MethodID] == 0 {
			order = append(order, o.MethodID)
		}
		counts[o.MethodID]++
	}
	for _, m := range order {
		p.observer.OriginsPublished(ctx, m, counts[m])
	}
}

func (p *Pipeline) debugOrigin(msg string, o *model.Origin) {
	slog.Debug(msg, "origin", o.ID, "method", o.MethodID, "arrivals", len(o.Arrivals))
	if p.cfg.Debug {
		slog.Info(msg + "\n" + model.FormatOrigin(o, p.store.Lookup(o.PickIDs())))
	}
}

// RunBatch is offline processing: every accepted pick is stored and the
// association engine is called once on the whole set. There is no trigger
// pick, so no reference check and no deduplication.
func (p *Pipeline) RunBatch(ctx context.Context, picks []model.Pick) Result {
	var res Result
	for _, pick := range picks {
		ok, reason := p.filter.Accept(pick)
		if !ok {
			p.observer.PickRejected(ctx, reason)
			continue
		}
		p.store.Store(pick)
		p.observer.PickAccepted(ctx)
	}

	all := p.store.All()
	if len(all) < p.cfg.MinPickCount {
		res.Outcome = OutcomeInsufficient
		return res
	}

	origins, err := p.associator.Associate(ctx, all)
	if err != nil {
		res.Outcome = OutcomeEngineFailure
		res.Err = newEngineFailure("", err)
		return res
	}

	var out []model.Origin
	for _, origin := range origins {
		p.debugOrigin("new origin", &origin)
		out = append(out, p.relocate(ctx, origin)...)
	}
	if len(out) == 0 {
		res.Outcome = OutcomeNoOrigin
		return res
	}

	p.publisher.Stamp(out, p.clock.Now())
	res.Origins = out
	if err := p.publisher.Deliver(ctx, "", out); err != nil {
		res.Outcome = OutcomeTransportFailure
		res.Err = err
		return res
	}
	p.countPublished(ctx, out)
	res.Outcome = OutcomePublished
	return res
}
