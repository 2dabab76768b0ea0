package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

const storageScopeName = "github.com/ticketport/ticketport/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in ticketport.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner       storage.Storage
	tracer      trace.Tracer
	ops         metric.Int64Counter
	dur         metric.Float64Histogram
	errs        metric.Int64Counter
	recordGauge metric.Int64Gauge
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumentedStorage(s, Tracer(storageScopeName), Meter(storageScopeName))
}

func newInstrumentedStorage(s storage.Storage, tracer trace.Tracer, m metric.Meter) *InstrumentedStorage {
	ops, _ := m.Int64Counter("ticketport.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("ticketport.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("ticketport.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	recordGauge, _ := m.Int64Gauge("ticketport.records",
		metric.WithDescription("Stored record counts by kind (snapshot from GetStatistics)"),
	)
	return &InstrumentedStorage{
		inner:       s,
		tracer:      tracer,
		ops:         ops,
		dur:         dur,
		errs:        errs,
		recordGauge: recordGauge,
	}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil && !storage.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Users ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateUser(ctx context.Context, user *types.User) error {
	attrs := []attribute.KeyValue{attribute.String("ticketport.user.role", string(user.Role))}
	ctx, span, t := s.op(ctx, "CreateUser", attrs...)
	err := s.inner.CreateUser(ctx, user)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetUser(ctx context.Context, id string) (*types.User, error) {
	attrs := []attribute.KeyValue{attribute.String("ticketport.user.id", id)}
	ctx, span, t := s.op(ctx, "GetUser", attrs...)
	v, err := s.inner.GetUser(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span, t := s.op(ctx, "GetUserByEmail")
	v, err := s.inner.GetUserByEmail(ctx, email)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetUserByExternalID(ctx context.Context, externalID string) (*types.User, error) {
	ctx, span, t := s.op(ctx, "GetUserByExternalID")
	v, err := s.inner.GetUserByExternalID(ctx, externalID)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error {
	attrs := []attribute.KeyValue{
		attribute.String("ticketport.user.id", id),
		attribute.Int("ticketport.update.count", len(updates)),
	}
	ctx, span, t := s.op(ctx, "UpdateUser", attrs...)
	err := s.inner.UpdateUser(ctx, id, updates)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Field definitions ───────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateFieldDefinition(ctx context.Context, field *types.FieldDefinition) error {
	ctx, span, t := s.op(ctx, "CreateFieldDefinition")
	err := s.inner.CreateFieldDefinition(ctx, field)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetFieldDefinition(ctx context.Context, id string) (*types.FieldDefinition, error) {
	ctx, span, t := s.op(ctx, "GetFieldDefinition")
	v, err := s.inner.GetFieldDefinition(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetFieldBySourceID(ctx context.Context, sourceFieldID int64) (*types.FieldDefinition, error) {
	attrs := []attribute.KeyValue{attribute.Int64("ticketport.field.source_id", sourceFieldID)}
	ctx, span, t := s.op(ctx, "GetFieldBySourceID", attrs...)
	v, err := s.inner.GetFieldBySourceID(ctx, sourceFieldID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetFieldByLabel(ctx context.Context, label string) (*types.FieldDefinition, error) {
	ctx, span, t := s.op(ctx, "GetFieldByLabel")
	v, err := s.inner.GetFieldByLabel(ctx, label)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateFieldDefinition(ctx context.Context, id string, updates map[string]interface{}) error {
	attrs := []attribute.KeyValue{attribute.Int("ticketport.update.count", len(updates))}
	ctx, span, t := s.op(ctx, "UpdateFieldDefinition", attrs...)
	err := s.inner.UpdateFieldDefinition(ctx, id, updates)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Tickets ─────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateTicket(ctx context.Context, ticket *types.Ticket) error {
	attrs := []attribute.KeyValue{attribute.String("ticketport.ticket.status", string(ticket.Status))}
	ctx, span, t := s.op(ctx, "CreateTicket", attrs...)
	err := s.inner.CreateTicket(ctx, ticket)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	ctx, span, t := s.op(ctx, "GetTicket")
	v, err := s.inner.GetTicket(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetTicketBySourceNumber(ctx context.Context, sourceNumber int64) (*types.Ticket, error) {
	attrs := []attribute.KeyValue{attribute.Int64("ticketport.ticket.source_number", sourceNumber)}
	ctx, span, t := s.op(ctx, "GetTicketBySourceNumber", attrs...)
	v, err := s.inner.GetTicketBySourceNumber(ctx, sourceNumber)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) MaxTicketNumber(ctx context.Context) (int64, error) {
	ctx, span, t := s.op(ctx, "MaxTicketNumber")
	v, err := s.inner.MaxTicketNumber(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetTicketSequence(ctx context.Context) (int64, error) {
	ctx, span, t := s.op(ctx, "GetTicketSequence")
	v, err := s.inner.GetTicketSequence(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) SetTicketSequence(ctx context.Context, next int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("ticketport.sequence.next", next)}
	ctx, span, t := s.op(ctx, "SetTicketSequence", attrs...)
	err := s.inner.SetTicketSequence(ctx, next)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Comments and form responses ─────────────────────────────────────────────

func (s *InstrumentedStorage) CreateComment(ctx context.Context, comment *types.Comment) error {
	ctx, span, t := s.op(ctx, "CreateComment")
	err := s.inner.CreateComment(ctx, comment)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListComments(ctx context.Context, ticketID string) ([]*types.Comment, error) {
	ctx, span, t := s.op(ctx, "ListComments")
	v, err := s.inner.ListComments(ctx, ticketID)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) CreateFormResponse(ctx context.Context, resp *types.FormResponse) error {
	ctx, span, t := s.op(ctx, "CreateFormResponse")
	err := s.inner.CreateFormResponse(ctx, resp)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListFormResponses(ctx context.Context, ticketID string) ([]*types.FormResponse, error) {
	ctx, span, t := s.op(ctx, "ListFormResponses")
	v, err := s.inner.ListFormResponses(ctx, ticketID)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Statistics ──────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) GetStatistics(ctx context.Context) (*storage.Statistics, error) {
	ctx, span, t := s.op(ctx, "GetStatistics")
	v, err := s.inner.GetStatistics(ctx)
	s.done(ctx, span, t, err)
	if err == nil && v != nil {
		kindAttr := func(kind string) metric.MeasurementOption {
			return metric.WithAttributes(attribute.String("kind", kind))
		}
		s.recordGauge.Record(ctx, int64(v.Users), kindAttr("users"))
		s.recordGauge.Record(ctx, int64(v.Tickets), kindAttr("tickets"))
		s.recordGauge.Record(ctx, int64(v.Comments), kindAttr("comments"))
		s.recordGauge.Record(ctx, int64(v.FieldDefinitions), kindAttr("field_definitions"))
		s.recordGauge.Record(ctx, int64(v.FormResponses), kindAttr("form_responses"))
	}
	return v, err
}

// ── Transactions ────────────────────────────────────────────────────────────

// RunInTransaction wraps the whole transaction in one span; writes made
// through tx are not traced individually.
func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, fn)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
