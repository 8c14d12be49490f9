package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func histogramCount(rm metricdata.ResourceMetrics, name string) uint64 {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok {
				var n uint64
				for _, dp := range h.DataPoints {
					n += dp.Count
				}
				return n
			}
		}
	}
	return 0
}

func TestMetrics_RecordsTurn(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	h := newHarness(t, testConfig(), func(d *Deps) { d.Metrics = m })
	h.start(t)

	h.stt.Emit("hey claude", false)
	h.stt.Emit("hey claude create a file called notes.txt", true)
	h.settle()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), sumOf(t, rm, "voice.transcripts"))
	assert.Equal(t, int64(1), sumOf(t, rm, "voice.commands"))
	assert.Equal(t, int64(1), sumOf(t, rm, "voice.executions"))
	assert.Equal(t, int64(1), sumOf(t, rm, "voice.speeches"))
	assert.Equal(t, uint64(1), histogramCount(rm, "voice.turn.duration"))
	assert.Equal(t, uint64(1), histogramCount(rm, "voice.execution.duration"))
}

func TestNewMetrics_NilMeter(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	m.transcript(context.Background(), true)
	m.turn(context.Background(), 0)
}
