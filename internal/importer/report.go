package importer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/types"
)

// addRejected counts elements the parser could not decode as skipped.
func (im *Importer) addRejected(report *types.ImportReport, batch *source.Batch) {
	for _, r := range batch.Rejected {
		report.Skipped++
		im.log.Warn("record rejected", "kind", batch.Kind, "error", r)
		report.AddError(rejectedMessage(batch.Kind, r))
	}
}

// rejectedMessage leads with the record's source id when the parser found
// one, matching the messages for records that fail later in the import.
func rejectedMessage(kind source.Kind, r *source.ParseError) string {
	if r.SourceID <= 0 {
		return r.Error()
	}
	switch kind {
	case source.KindTicket:
		return fmt.Sprintf("ticket #%d: %v", r.SourceID, r.Err)
	case source.KindUser:
		return fmt.Sprintf("user %d: %v", r.SourceID, r.Err)
	case source.KindField:
		return fmt.Sprintf("field %d: %v", r.SourceID, r.Err)
	}
	return r.Error()
}

func (im *Importer) logDiscarded(batch *source.Batch) {
	if batch.Discarded == 0 {
		return
	}
	im.log.Debug("discarded unparseable lines",
		"kind", batch.Kind,
		"count", batch.Discarded,
		"lines", batch.DiscardedLines,
	)
}

// finish closes out one import: span attributes, metrics and a summary log
// line.
func (im *Importer) finish(ctx context.Context, span trace.Span, kind string, report *types.ImportReport, err error, start time.Time) {
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		im.log.Error("import failed", "kind", kind, "error", err)
		im.metrics.Record(ctx, kind, &types.ImportReport{}, elapsed)
		return
	}

	span.SetAttributes(
		attribute.Int("ticketport.import.imported", report.Imported),
		attribute.Int("ticketport.import.duplicates", report.Duplicates),
		attribute.Int("ticketport.import.updated", report.Updated),
		attribute.Int("ticketport.import.skipped", report.Skipped),
	)
	im.metrics.Record(ctx, kind, report, elapsed)
	im.log.Info("import finished",
		"kind", kind,
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"users_created", report.UsersCreated,
		"fields_created", report.CustomFieldsCreated,
		"form_responses", report.FormResponsesCreated,
		"errors", report.TotalErrors(),
		"elapsed", elapsed,
	)
}
