package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/storage/memory"
	"github.com/ticketport/ticketport/internal/testutil/teststore"
	"github.com/ticketport/ticketport/internal/types"
)

func TestInitDisabled(t *testing.T) {
	t.Setenv("TICKETPORT_OTEL_ENABLED", "")
	require.NoError(t, Init(context.Background(), "ticketport", "test"))
	assert.False(t, Enabled())
	Shutdown(context.Background())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "AlwaysOnSampler"},
		{"junk", "AlwaysOnSampler"},
		{"1", "AlwaysOnSampler"},
		{"-0.5", "AlwaysOnSampler"},
		{"0.25", "TraceIDRatioBased{0.25}"},
		{"0", "TraceIDRatioBased{0}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.raw).Description(), tt.want, tt.raw)
	}
}

func TestWrapStorageDisabledReturnsInner(t *testing.T) {
	t.Setenv("TICKETPORT_OTEL_ENABLED", "")
	inner := memory.New()
	assert.Same(t, storage.Storage(inner), WrapStorage(inner))
}

func TestWrapStorageEnabledDelegates(t *testing.T) {
	t.Setenv("TICKETPORT_OTEL_ENABLED", "true")
	wrapped := WrapStorage(memory.New())
	_, ok := wrapped.(*InstrumentedStorage)
	require.True(t, ok, "enabled telemetry wraps the store")
	defer wrapped.Close()

	ctx := context.Background()
	admin := teststore.CreateAdmin(t, wrapped)
	require.NoError(t, wrapped.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateTicket(ctx, teststore.NewTicket(admin.ID, 12))
	}))
	stats, err := wrapped.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tickets)
}

// The decorator must satisfy the same contract as what it wraps.
func TestInstrumentedConformance(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	teststore.RunConformance(t, func(t *testing.T) storage.Storage {
		return newInstrumentedStorage(memory.New(), tracenoop.NewTracerProvider().Tracer("test"), mp.Meter("test"))
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Greater(t, sumCounter(rm, "ticketport.storage.operations"), int64(0))
	assert.Greater(t, sumCounter(rm, "ticketport.storage.errors"), int64(0), "conflict cases count as errors")
}

func TestImportMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewImportMetricsWithMeter(mp.Meter("test"))

	ctx := context.Background()
	m.Record(ctx, "tickets", &types.ImportReport{Success: true, Imported: 4, Skipped: 1}, 20*time.Millisecond)
	m.Record(ctx, "users", &types.ImportReport{Success: true, Imported: 2, Duplicates: 3}, time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(10), sumCounter(rm, "ticketport.import.records"))
	assert.Equal(t, int64(2), sumCounter(rm, "ticketport.import.batches"))

	var nilMetrics *ImportMetrics
	nilMetrics.Record(ctx, "tickets", &types.ImportReport{}, 0)
}

func sumCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
