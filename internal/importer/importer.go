// Package importer runs imports of source platform exports: tickets (with
// their comments and custom field values), users and the custom field
// catalog. Each import parses the upload, reconciles referenced users and
// fields, then writes records one at a time, reporting per-record failures
// instead of aborting.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/reconcile"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/telemetry"
	"github.com/ticketport/ticketport/internal/types"
)

// ErrNoAdmin is returned when a ticket import has no administrator to fall
// back to for unresolved users.
var ErrNoAdmin = errors.New("an administrator is required to import tickets")

const tracerName = "github.com/ticketport/ticketport/importer"

// Options configures an Importer. Zero values select the defaults.
type Options struct {
	// SubmitterImpliesAgent is passed to user reconciliation.
	SubmitterImpliesAgent bool
	Mappings              *Mappings
	Logger                *slog.Logger
	Metrics               *telemetry.ImportMetrics
	Now                   func() time.Time
}

// Importer imports source exports into a store. Imports are sequential
// within one call; concurrent calls rely on the store's unique keys.
type Importer struct {
	store    storage.Storage
	mappings *Mappings
	opts     Options
	log      *slog.Logger
	metrics  *telemetry.ImportMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// New returns an Importer writing to store.
func New(store storage.Storage, opts Options) *Importer {
	im := &Importer{
		store:    store,
		mappings: opts.Mappings,
		opts:     opts,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		tracer:   telemetry.Tracer(tracerName),
		now:      opts.Now,
	}
	if im.mappings == nil {
		im.mappings = DefaultMappings()
	}
	if im.log == nil {
		im.log = slog.New(slog.DiscardHandler)
	}
	if im.now == nil {
		im.now = time.Now
	}
	return im
}

// ImportTickets imports a ticket export. adminID names the importing
// administrator, who becomes the requester or author wherever a source user
// cannot be resolved. format ("json" or "jsonl") is a hint only; the layout
// is detected from the data.
//
// Parse errors and an unknown admin are returned before anything is written.
// A storage error from field or user reconciliation is also returned, but
// placeholder fields and users created before it stay in place. Per-ticket
// failures are counted in the report.
func (im *Importer) ImportTickets(ctx context.Context, adminID string, data []byte, format string) (*types.ImportReport, error) {
	// Records already written stay written; a batch runs to the end.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	ctx, span := im.startSpan(ctx, "tickets", data)
	defer span.End()

	report, err := im.importTickets(ctx, adminID, data, format)
	im.finish(ctx, span, "tickets", report, err, start)
	return report, err
}

func (im *Importer) importTickets(ctx context.Context, adminID string, data []byte, format string) (*types.ImportReport, error) {
	admin, err := im.resolveAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	batch, err := source.Parse(data, source.KindTicket)
	if err != nil {
		return nil, err
	}
	if format != "" && format != string(batch.Mode) {
		im.log.Debug("declared format differs from detected layout", "declared", format, "detected", batch.Mode)
	}
	im.logDiscarded(batch)

	tickets := batch.Tickets()
	fields, err := reconcile.ReconcileFields(ctx, im.store, tickets)
	if err != nil {
		return nil, err
	}
	users, err := reconcile.ReconcileUsers(ctx, im.store, tickets, batch.Sideloaded, admin, reconcile.Options{
		SubmitterImpliesAgent: im.opts.SubmitterImpliesAgent,
		Logger:                im.log,
	})
	if err != nil {
		return nil, err
	}

	report := &types.ImportReport{
		Success:             true,
		UsersCreated:        users.Created(),
		CustomFieldsCreated: fields.Created(),
	}
	im.addRejected(report, batch)
	for _, w := range users.Warnings() {
		report.AddError(w)
	}

	b := &ticketBatch{users: users, fields: fields, report: report}
	for _, st := range tickets {
		outcome, err := im.importTicket(ctx, b, st)
		switch outcome {
		case ticketImported:
			report.Imported++
		case ticketDuplicate:
			report.Duplicates++
		default:
			report.Skipped++
			im.log.Warn("ticket skipped", "ticket", st.SourceID(), "error", err)
			report.AddError(fmt.Sprintf("ticket #%d: %v", st.SourceID(), err))
		}
	}
	return report, nil
}

// ImportUsers imports a user export. Existing users, matched by email or
// by source id, only have their empty fields filled in.
func (im *Importer) ImportUsers(ctx context.Context, data []byte) (*types.ImportReport, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	ctx, span := im.startSpan(ctx, "users", data)
	defer span.End()

	report, err := im.importUsers(ctx, data)
	im.finish(ctx, span, "users", report, err, start)
	return report, err
}

func (im *Importer) importUsers(ctx context.Context, data []byte) (*types.ImportReport, error) {
	batch, err := source.Parse(data, source.KindUser)
	if err != nil {
		return nil, err
	}
	im.logDiscarded(batch)

	report := &types.ImportReport{Success: true}
	im.addRejected(report, batch)
	for _, su := range batch.Users() {
		_, outcome, err := reconcile.UpsertUser(ctx, im.store, su)
		if err != nil {
			report.Skipped++
			im.log.Warn("user skipped", "user", su.SourceID(), "error", err)
			report.AddError(fmt.Sprintf("user %d: %v", su.SourceID(), err))
			continue
		}
		switch outcome {
		case reconcile.UpsertCreated:
			report.Imported++
			report.UsersCreated++
		case reconcile.UpsertUpdated:
			report.Updated++
		default:
			report.Duplicates++
		}
	}
	return report, nil
}

// ImportFieldCatalog imports a custom field catalog, CSV or JSON. Rows
// update the definition already bound to their source id or promote its
// placeholder; other rows create definitions.
func (im *Importer) ImportFieldCatalog(ctx context.Context, data []byte) (*types.ImportReport, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	ctx, span := im.startSpan(ctx, "fields", data)
	defer span.End()

	report, err := im.importFieldCatalog(ctx, data)
	im.finish(ctx, span, "fields", report, err, start)
	return report, err
}

func (im *Importer) importFieldCatalog(ctx context.Context, data []byte) (*types.ImportReport, error) {
	batch, err := source.ParseFieldCatalog(data)
	if err != nil {
		return nil, err
	}
	im.logDiscarded(batch)

	report := &types.ImportReport{Success: true}
	if batch.Mode == source.ModeCSV {
		// Header and other non-row lines are expected in CSV catalogs.
		report.Skipped += len(batch.Rejected)
		for _, r := range batch.Rejected {
			im.log.Debug("catalog line skipped", "line", r.Line, "error", r.Err)
		}
	} else {
		im.addRejected(report, batch)
	}

	for _, res := range reconcile.ApplyCatalog(ctx, im.store, batch.Fields(), im.mappings.FieldTypes()) {
		switch res.Outcome {
		case reconcile.CatalogCreated:
			report.Imported++
		case reconcile.CatalogUpdated:
			report.Updated++
		default:
			report.Skipped++
			im.log.Warn("catalog row failed", "field", res.SourceFieldID, "error", res.Err)
			report.AddError(fmt.Sprintf("field %d: %v", res.SourceFieldID, res.Err))
		}
	}
	return report, nil
}

// ResetTicketSequence points the ticket number sequence just past the
// highest stored ticket number, so locally created tickets never collide
// with imported ones.
func (im *Importer) ResetTicketSequence(ctx context.Context) (*types.SequenceReset, error) {
	ctx, span := im.tracer.Start(ctx, "import.sequence_reset")
	defer span.End()

	highest, err := im.store.MaxTicketNumber(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read highest ticket number: %w", err)
	}
	next := highest + 1
	if err := im.store.SetTicketSequence(ctx, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("set ticket sequence: %w", err)
	}
	span.SetAttributes(attribute.Int64("ticketport.sequence.next", next))
	im.log.Info("ticket sequence reset", "next_number", next)
	return &types.SequenceReset{NextNumber: next}, nil
}

func (im *Importer) resolveAdmin(ctx context.Context, adminID string) (*types.User, error) {
	if adminID == "" {
		return nil, ErrNoAdmin
	}
	admin, err := im.store.GetUser(ctx, adminID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user %s not found", ErrNoAdmin, adminID)
		}
		return nil, fmt.Errorf("load administrator: %w", err)
	}
	if admin.Role != types.RoleAdmin {
		return nil, fmt.Errorf("%w: user %s has role %s", ErrNoAdmin, adminID, admin.Role)
	}
	return admin, nil
}

func (im *Importer) startSpan(ctx context.Context, kind string, data []byte) (context.Context, trace.Span) {
	batchID := idgen.BatchFingerprint(kind, data)
	return im.tracer.Start(ctx, "import."+kind, trace.WithAttributes(
		attribute.String("ticketport.import.kind", kind),
		attribute.String("ticketport.import.batch", batchID),
		attribute.Int("ticketport.import.bytes", len(data)),
	))
}
