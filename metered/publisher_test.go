package metered_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rjmurillo/cachemetrics/metered"
)

// sdkSetup builds a real SDK meter whose readings the test pulls manually,
// standing in for the backend's own polling cadence.
func sdkSetup(t *testing.T) (*sdkmetric.ManualReader, *metered.Registry) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, metered.NewRegistry(provider.Meter("cachemetrics_test"))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findSum(rm metricdata.ResourceMetrics, name string) (metricdata.Sum[int64], bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				return sum, ok
			}
		}
	}
	return metricdata.Sum[int64]{}, false
}

// pointValue returns the datapoint whose attribute set matches exactly.
func pointValue(t *testing.T, sum metricdata.Sum[int64], attrs ...attribute.KeyValue) int64 {
	t.Helper()
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	t.Fatalf("no datapoint with attributes %v", want.Encoded(attribute.DefaultEncoder()))
	return 0
}

// The backend pull sees every increment that happened before it, tagged
// with the composed base tags plus exactly one dynamic dimension.
func TestPublisher_Readings(t *testing.T) {
	t.Parallel()

	reader, reg := sdkSetup(t)
	c, err := metered.New[string, string](newMemory(t, 1, 1), reg, metered.Options{
		Name: "users",
		Tags: map[string]string{"region": "eu"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	set(t, c, "k1", "v1")
	_, _, _ = c.Get("k1") // hit
	_, _, _ = c.Get("k1") // hit
	_, _, _ = c.Get("k2") // miss
	set(t, c, "k2", "v2") // displaces k1 (capacity 1)

	rm := collect(t, reader)

	base := []attribute.KeyValue{
		attribute.String("cache.name", "users"),
		attribute.String("region", "eu"),
	}

	lookups, ok := findSum(rm, "cache.lookups")
	require.True(t, ok, "cache.lookups must be exported")
	assert.True(t, lookups.IsMonotonic)
	assert.Equal(t, metricdata.CumulativeTemporality, lookups.Temporality)
	assert.EqualValues(t, 2, pointValue(t, lookups, append(base, attribute.String("result", "hit"))...))
	assert.EqualValues(t, 1, pointValue(t, lookups, append(base, attribute.String("result", "miss"))...))

	evictions, ok := findSum(rm, "cache.evictions")
	require.True(t, ok, "cache.evictions must be exported")
	assert.EqualValues(t, 1, pointValue(t, evictions, append(base, attribute.String("reason", "capacity"))...))
	assert.EqualValues(t, 0, pointValue(t, evictions, append(base, attribute.String("reason", "expired"))...))
	assert.EqualValues(t, 0, pointValue(t, evictions, append(base, attribute.String("reason", "token_expired"))...))
}

// Two instances under one meter stay isolated: operations on one never
// surface under the other's tags.
func TestPublisher_InstanceIsolation(t *testing.T) {
	t.Parallel()

	reader, reg := sdkSetup(t)

	a, err := metered.New[string, string](newMemory(t, 8, 1), reg, metered.Options{Name: "a"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	b, err := metered.New[string, string](newMemory(t, 8, 1), reg, metered.Options{Name: "b"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	set(t, a, "k", "v")
	_, _, _ = a.Get("k")
	_, _, _ = a.Get("nope")

	rm := collect(t, reader)
	lookups, ok := findSum(rm, "cache.lookups")
	require.True(t, ok)

	assert.EqualValues(t, 1, pointValue(t, lookups,
		attribute.String("cache.name", "a"), attribute.String("result", "hit")))
	assert.EqualValues(t, 0, pointValue(t, lookups,
		attribute.String("cache.name", "b"), attribute.String("result", "hit")))
	assert.EqualValues(t, 0, pointValue(t, lookups,
		attribute.String("cache.name", "b"), attribute.String("result", "miss")))
}

// Close unregisters the poll callback: later collections carry no
// readings for the closed instance.
func TestPublisher_CloseStopsReadings(t *testing.T) {
	t.Parallel()

	reader, reg := sdkSetup(t)
	c, err := metered.New[string, string](newMemory(t, 8, 1), reg, metered.Options{Name: "gone"})
	require.NoError(t, err)

	_, _, _ = c.Get("k")
	require.NoError(t, c.Close())

	rm := collect(t, reader)
	if lookups, ok := findSum(rm, "cache.lookups"); ok {
		want := attribute.NewSet(
			attribute.String("cache.name", "gone"),
			attribute.String("result", "miss"),
		)
		for _, dp := range lookups.DataPoints {
			assert.False(t, dp.Attributes.Equals(&want),
				"closed instance must not be polled")
		}
	}
}
