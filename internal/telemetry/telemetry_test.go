package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vietnamexplorer/explorer/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "explorer-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_ShutdownWithoutProviders(t *testing.T) {
	assert.NoError(t, (&telemetry.Provider{}).Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(0).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")

	// Children follow a sampled parent regardless of ratio.
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "ParentBased")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestExploreMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("explore-test")

	m, err := telemetry.NewExploreMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	m.SearchFinished(ctx, telemetry.OutcomeOK, "")
	m.SearchFinished(ctx, telemetry.OutcomeFailed, "geocode")
	m.SearchFinished(ctx, telemetry.OutcomeFailed, "geocode")
	m.ChatTurn(ctx, false, true)
	m.Annotation(ctx, false)
	m.Annotation(ctx, true)
	m.Annotation(ctx, false)
	require.NoError(t, m.ObserveScreens(func() int { return 2 }))

	data := collect(t, reader)

	searches, ok := data["explore.searches"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range searches.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, searches.DataPoints, 2)

	annotations, ok := data["explore.poi_annotations"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, annotations.DataPoints, 2)

	screens, ok := data["explore.screens_active"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, screens.DataPoints, 1)
	assert.Equal(t, int64(2), screens.DataPoints[0].Value)

	_, ok = data["explore.chat_turns"]
	assert.True(t, ok)
}
