// Package observability exports pipeline counters as OpenTelemetry
// metrics, optionally pushed to an OTLP collector over gRPC.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/scocto/scoctoloc/internal/engine"
)

const meterName = "github.com/scocto/scoctoloc"

// Config configures the metric provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string        // e.g. "localhost:4317"; empty disables export
	Interval       time.Duration // export period
	Insecure       bool          // plaintext gRPC (dev only)
}

// DefaultConfig returns the defaults used when no metrics section is
// configured.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "scoctoloc",
		ServiceVersion: "dev",
		Interval:       15 * time.Second,
		Insecure:       true,
	}
}

// Provider owns the meter provider and the pipeline instruments. It
// implements engine.Observer.
type Provider struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	logger        *slog.Logger

	picksAccepted metric.Int64Counter
	picksRejected metric.Int64Counter
	triggers      metric.Int64Counter
	origins       metric.Int64Counter
	events        metric.Int64Counter
	evictedPicks  metric.Int64Counter
	evictedEvents metric.Int64Counter
}

var _ engine.Observer = (*Provider)(nil)

// New creates a provider. With an OTLP endpoint, metrics are pushed by a
// periodic reader; without one, instruments are live but nothing is
// exported.
func New(ctx context.Context, config Config) (*Provider, error) {
	if config.OTLPEndpoint == "" {
		return newProvider(config)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := config.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	p, err := newProvider(config, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "metrics export enabled", "endpoint", config.OTLPEndpoint, "interval", interval)
	return p, nil
}

// NewWithReader creates a provider collecting into reader. Tests use an
// sdkmetric.ManualReader.
func NewWithReader(config Config, reader sdkmetric.Reader) (*Provider, error) {
	return newProvider(config, reader)
}

func newProvider(config Config, readers ...sdkmetric.Reader) (*Provider, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultConfig().ServiceName
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	p := &Provider{
		config:        config,
		meterProvider: sdkmetric.NewMeterProvider(opts...),
		logger:        slog.Default().With("component", "observability"),
	}
	p.meter = p.meterProvider.Meter(meterName, metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) initInstruments() error {
	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&p.picksAccepted, "scoctoloc.picks.accepted", "Picks stored and scheduled", "{pick}"},
		{&p.picksRejected, "scoctoloc.picks.rejected", "Picks rejected by the stream filter", "{pick}"},
		{&p.triggers, "scoctoloc.triggers", "Trigger picks processed, by outcome", "{pick}"},
		{&p.origins, "scoctoloc.origins.published", "Origins published, by method", "{origin}"},
		{&p.events, "scoctoloc.events.created", "Events created by the deduplicator", "{event}"},
		{&p.evictedPicks, "scoctoloc.picks.evicted", "Picks dropped past the retention horizon", "{pick}"},
		{&p.evictedEvents, "scoctoloc.events.evicted", "Events dropped past the retention horizon", "{event}"},
	}

	for _, c := range counters {
		counter, err := p.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return err
		}
		*c.dst = counter
	}
	return nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		return err
	}
	return nil
}

// PickAccepted implements engine.Observer.
func (p *Provider) PickAccepted(ctx context.Context) {
	p.picksAccepted.Add(ctx, 1)
}

// PickRejected implements engine.Observer.
func (p *Provider) PickRejected(ctx context.Context, reason engine.Reason) {
	p.picksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

// TriggerProcessed implements engine.Observer.
func (p *Provider) TriggerProcessed(ctx context.Context, outcome engine.Outcome) {
	p.triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

// OriginsPublished implements engine.Observer.
func (p *Provider) OriginsPublished(ctx context.Context, method string, n int) {
	p.origins.Add(ctx, int64(n), metric.WithAttributes(attribute.String("method", method)))
}

// EventCreated implements engine.Observer.
func (p *Provider) EventCreated(ctx context.Context) {
	p.events.Add(ctx, 1)
}

// Evicted implements engine.Observer.
func (p *Provider) Evicted(ctx context.Context, picks, events int) {
	if picks > 0 {
		p.evictedPicks.Add(ctx, int64(picks))
	}
	if events > 0 {
		p.evictedEvents.Add(ctx, int64(events))
	}
}
