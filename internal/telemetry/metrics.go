package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ticketport/ticketport/internal/types"
)

const importScopeName = "github.com/ticketport/ticketport/importer"

// ImportMetrics counts import outcomes per batch kind.
type ImportMetrics struct {
	records metric.Int64Counter
	batches metric.Int64Counter
	dur     metric.Float64Histogram
}

// NewImportMetrics builds the instruments on the global meter provider.
func NewImportMetrics() *ImportMetrics {
	return NewImportMetricsWithMeter(Meter(importScopeName))
}

// NewImportMetricsWithMeter builds the instruments on m.
func NewImportMetricsWithMeter(m metric.Meter) *ImportMetrics {
	records, _ := m.Int64Counter("ticketport.import.records",
		metric.WithDescription("Records processed by import, by outcome"),
	)
	batches, _ := m.Int64Counter("ticketport.import.batches",
		metric.WithDescription("Import batches processed, by result"),
	)
	dur, _ := m.Float64Histogram("ticketport.import.duration",
		metric.WithDescription("Import batch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &ImportMetrics{records: records, batches: batches, dur: dur}
}

// Record adds one finished batch. A nil receiver is a no-op.
func (m *ImportMetrics) Record(ctx context.Context, kind string, report *types.ImportReport, elapsed time.Duration) {
	if m == nil || report == nil {
		return
	}
	outcome := func(name string, n int) {
		if n == 0 {
			return
		}
		m.records.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", name),
		))
	}
	outcome("imported", report.Imported)
	outcome("duplicate", report.Duplicates)
	outcome("updated", report.Updated)
	outcome("skipped", report.Skipped)

	result := "success"
	if !report.Success {
		result = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("result", result))
	m.batches.Add(ctx, 1, attrs)
	m.dur.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}
