package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// Mode selects where the publisher delivers origins.
type Mode int

const (
	// ModeOnline sends origins over the transport.
	ModeOnline Mode = iota
	// ModeOffline collects the origins of a single batch.
	ModeOffline
	// ModePlayback collects origins in publication order.
	ModePlayback
	// ModeTest logs origins and discards them.
	ModeTest
)

var modeNames = [...]string{"online", "offline", "playback", "test"}

// String returns the mode name.
func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Transport delivers a batch of origins to downstream consumers.
type Transport interface {
	Send(ctx context.Context, origins []model.Origin) error
}

// Archive persists published origins.
type Archive interface {
	ArchiveOrigins(ctx context.Context, origins []model.Origin) error
}

// Collector accumulates published origins in order. Safe for concurrent
// use so callers can read results while a pipeline runs.
type Collector struct {
	mu      sync.Mutex
	origins []model.Origin
}

// Add appends origins.
func (c *Collector) Add(origins ...model.Origin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origins = append(c.origins, origins...)
}

// Origins returns a copy of the collected origins.
func (c *Collector) Origins() []model.Origin {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Origin, len(c.origins))
	copy(out, c.origins)
	return out
}

// Len returns the number of collected origins.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.origins)
}

// PublisherConfig holds the publisher's settings.
type PublisherConfig struct {
	Mode      Mode
	AgencyID  string
	Author    string
	IDs       IDGenerator
	Transport Transport  // required in ModeOnline
	Collector *Collector // required in ModeOffline and ModePlayback
	Archive   Archive    // optional
}

// Publisher stamps surviving origins and delivers them according to the
// mode. Delivery failures are logged and returned but never retried.
type Publisher struct {
	cfg PublisherConfig
}

// NewPublisher validates cfg and creates a publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.IDs == nil {
		return nil, fmt.Errorf("publisher: id generator is required")
	}
	switch cfg.Mode {
	case ModeOnline:
		if cfg.Transport == nil {
			return nil, fmt.Errorf("publisher: transport is required in %s mode", cfg.Mode)
		}
	case ModeOffline, ModePlayback:
		if cfg.Collector == nil {
			return nil, fmt.Errorf("publisher: collector is required in %s mode", cfg.Mode)
		}
	case ModeTest:
	default:
		return nil, fmt.Errorf("publisher: invalid mode %d", int(cfg.Mode))
	}
	return &Publisher{cfg: cfg}, nil
}

// Mode returns the delivery mode.
func (p *Publisher) Mode() Mode {
	return p.cfg.Mode
}

// Stamp assigns identifiers to association origins and to relocated
// origins the engine left unnamed, in slice order, and stamps creation
// info and evaluation mode on every origin. Only origins that survived
// deduplication are stamped, so playback identifiers have no gaps.
func (p *Publisher) Stamp(origins []model.Origin, now time.Time) {
	for i := range origins {
		o := &origins[i]
		if o.Method == model.MethodAssociation || o.ID == "" {
			o.ID = p.cfg.IDs.NewID(o.MethodID)
		}
		o.CreationInfo = model.CreationInfo{
			AgencyID:     p.cfg.AgencyID,
			Author:       p.cfg.Author,
			CreationTime: now,
		}
		o.EvaluationMode = model.EvaluationAutomatic
	}
}

// Deliver hands already stamped origins to the archive and to the mode's
// destination.
func (p *Publisher) Deliver(ctx context.Context, pickID string, origins []model.Origin) error {
	if len(origins) == 0 {
		return nil
	}

	if p.cfg.Archive != nil {
		if err := p.cfg.Archive.ArchiveOrigins(ctx, origins); err != nil {
			slog.Error("failed to archive origins", "pick", pickID, "count", len(origins), "error", err)
		}
	}

	switch p.cfg.Mode {
	case ModeOffline, ModePlayback:
		p.cfg.Collector.Add(origins...)
		for _, o := range origins {
			slog.Info("collected origin", "origin", o.ID, "method", o.MethodID, "arrivals", len(o.Arrivals))
		}
	case ModeTest:
		for _, o := range origins {
			slog.Info("test mode - not sending", "origin", o.ID)
		}
	case ModeOnline:
		if err := p.cfg.Transport.Send(ctx, origins); err != nil {
			for _, o := range origins {
				slog.Error("failed to send", "origin", o.ID, "error", err)
			}
			return newTransportFailure(pickID, len(origins), err)
		}
		for _, o := range origins {
			slog.Info("sent", "origin", o.ID)
		}
	}
	return nil
}
