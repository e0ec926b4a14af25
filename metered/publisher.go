package metered

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Instrument names. Exact strings are a naming-convention choice; the
// behavioural contract is the dimension set, not the spelling.
const (
	instLookups   = "cache.lookups"
	instEvictions = "cache.evictions"
)

// publisher owns one instance's observable-instrument registration.
// Instruments are registered once at construction, never per operation.
// The poll callback closes only over this instance's counter bank and tag
// composer, so instances sharing a meter cannot cross-contaminate.
type publisher struct {
	reg metric.Registration
}

func newPublisher(meter metric.Meter, bank *counterBank, tags *tagComposer) (*publisher, error) {
	lookups, err := meter.Int64ObservableCounter(instLookups,
		metric.WithDescription("Cache lookups partitioned by result."),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, fmt.Errorf("metered: register %s: %w", instLookups, err)
	}
	evictions, err := meter.Int64ObservableCounter(instEvictions,
		metric.WithDescription("Cache-initiated evictions partitioned by reason."),
		metric.WithUnit("{eviction}"))
	if err != nil {
		return nil, fmt.Errorf("metered: register %s: %w", instEvictions, err)
	}

	// The backend drives this at its own cadence. All snapshotting and tag
	// composition cost lives here, at poll time.
	observe := func(_ context.Context, o metric.Observer) error {
		s := bank.snapshot()
		o.ObserveInt64(lookups, int64(s.Hits), metric.WithAttributeSet(tags.compose(dimHit)))
		o.ObserveInt64(lookups, int64(s.Misses), metric.WithAttributeSet(tags.compose(dimMiss)))
		for _, r := range countedReasons {
			o.ObserveInt64(evictions, int64(s.byReason(r)),
				metric.WithAttributeSet(tags.compose(dimReason(r))))
		}
		return nil
	}

	reg, err := meter.RegisterCallback(observe, lookups, evictions)
	if err != nil {
		return nil, fmt.Errorf("metered: register poll callback: %w", err)
	}
	return &publisher{reg: reg}, nil
}

// unregister stops the backend from polling this instance. Safe to call
// while a poll is in flight; the SDK serializes against its own collection.
func (p *publisher) unregister() error {
	return p.reg.Unregister()
}
