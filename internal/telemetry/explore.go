package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Search outcomes recorded by ExploreMetrics.
const (
	OutcomeOK         = "ok"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
	OutcomeEmpty      = "empty"
	OutcomeCanceled   = "canceled"
)

// ExploreMetrics counts what happens on map screens.
type ExploreMetrics struct {
	searches    metric.Int64Counter
	chatTurns   metric.Int64Counter
	annotations metric.Int64Counter
	meter       metric.Meter
}

// NewExploreMetrics creates the explorer instruments on meter.
func NewExploreMetrics(meter metric.Meter) (*ExploreMetrics, error) {
	searches, err := meter.Int64Counter(
		"explore.searches",
		metric.WithDescription("Manual searches by outcome and failing step"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating searches counter: %w", err)
	}

	chatTurns, err := meter.Int64Counter(
		"explore.chat_turns",
		metric.WithDescription("Assistant chat turns"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat turns counter: %w", err)
	}

	annotations, err := meter.Int64Counter(
		"explore.poi_annotations",
		metric.WithDescription("Per-POI weather lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating annotations counter: %w", err)
	}

	return &ExploreMetrics{
		searches:    searches,
		chatTurns:   chatTurns,
		annotations: annotations,
		meter:       meter,
	}, nil
}

// SearchFinished records one manual search. step is empty unless the
// search failed.
func (m *ExploreMetrics) SearchFinished(ctx context.Context, outcome, step string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if step != "" {
		attrs = append(attrs, attribute.String("step", step))
	}
	m.searches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ChatTurn records one assistant turn.
func (m *ExploreMetrics) ChatTurn(ctx context.Context, failed, implicitSearch bool) {
	m.chatTurns.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("failed", failed),
		attribute.Bool("implicit_search", implicitSearch),
	))
}

// Annotation records one POI weather lookup.
func (m *ExploreMetrics) Annotation(ctx context.Context, failed bool) {
	m.annotations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("failed", failed)))
}

// ObserveScreens reports count as the number of mounted screens on every
// collection.
func (m *ExploreMetrics) ObserveScreens(count func() int) error {
	_, err := m.meter.Int64ObservableGauge(
		"explore.screens_active",
		metric.WithDescription("Mounted map screens"),
		metric.WithUnit("{screen}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("creating screens gauge: %w", err)
	}
	return nil
}
