package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ticketport/ticketport/internal/reconcile"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/validation"
)

type ticketOutcome int

const (
	ticketSkipped ticketOutcome = iota
	ticketImported
	ticketDuplicate
)

// ticketBatch is the read-only state shared by every ticket of one upload.
type ticketBatch struct {
	users  *reconcile.UserMap
	fields *reconcile.FieldMap
	report *types.ImportReport
}

// importTicket writes one source ticket with its comments and form
// responses. The ticket and its comments are created atomically; form
// responses are written afterwards and fail individually.
func (im *Importer) importTicket(ctx context.Context, b *ticketBatch, st *source.SourceTicket) (ticketOutcome, error) {
	number := st.SourceID()

	_, err := im.store.GetTicketBySourceNumber(ctx, number)
	if err == nil {
		return ticketDuplicate, nil
	}
	if !storage.IsNotFound(err) {
		return ticketSkipped, fmt.Errorf("dedup lookup: %w", err)
	}

	ticket, comments, err := im.prepareTicket(b, st)
	if err != nil {
		return ticketSkipped, err
	}

	err = im.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		for i, c := range comments {
			c.TicketID = ticket.ID
			if err := tx.CreateComment(ctx, c); err != nil {
				return fmt.Errorf("create comment %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		// Lost a race with a concurrent upload of the same ticket.
		if storage.IsConflict(err) {
			if _, lookupErr := im.store.GetTicketBySourceNumber(ctx, number); lookupErr == nil {
				return ticketDuplicate, nil
			}
		}
		return ticketSkipped, err
	}

	im.writeFormResponses(ctx, b, st, ticket)
	return ticketImported, nil
}

// prepareTicket builds the canonical ticket and its comments without
// touching storage. A malformed comment fails the whole ticket here.
func (im *Importer) prepareTicket(b *ticketBatch, st *source.SourceTicket) (*types.Ticket, []*types.Comment, error) {
	sourceComments, err := st.DecodeComments()
	if err != nil {
		return nil, nil, err
	}

	now := im.now().UTC()
	number := st.SourceID()
	status := im.mappings.Status(st.Status)

	createdAt := now
	if p := st.CreatedAt.Ptr(); p != nil {
		createdAt = p.UTC()
	}
	updatedAt := now
	if p := st.UpdatedAt.Ptr(); p != nil {
		updatedAt = p.UTC()
	}

	ticket := &types.Ticket{
		Number:             number,
		SourceTicketNumber: &number,
		Subject:            validation.NormalizeSubject(st.Subject),
		Description:        st.Description,
		Status:             status,
		Priority:           im.mappings.Priority(st.Priority),
		RequesterID:        b.users.ResolveOrFallback(st.RequesterRef().ID),
		Tags:               cleanTags(st.Tags),
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
		SolvedAt:           solvedAt(st, status, now),
	}
	if id, ok := b.users.Resolve(st.AssigneeRef().ID); ok {
		ticket.AssigneeID = &id
	}
	if err := validation.ValidateTicket(ticket); err != nil {
		return nil, nil, err
	}

	comments := make([]*types.Comment, 0, len(sourceComments))
	for _, sc := range sourceComments {
		c := &types.Comment{
			AuthorID:   b.users.ResolveOrFallback(sc.AuthorRef().ID),
			Body:       sc.Text(),
			IsInternal: sc.Internal(),
			CreatedAt:  createdAt,
		}
		if p := sc.CreatedAt.Ptr(); p != nil {
			c.CreatedAt = p.UTC()
		}
		comments = append(comments, c)
	}
	return ticket, comments, nil
}

// solvedAt prefers the explicit solved_at; resolved tickets without one are
// stamped with their last update, or now.
func solvedAt(st *source.SourceTicket, status types.Status, now time.Time) *time.Time {
	if p := st.SolvedAt.Ptr(); p != nil {
		t := p.UTC()
		return &t
	}
	if !status.IsResolved() {
		return nil
	}
	if p := st.UpdatedAt.Ptr(); p != nil {
		t := p.UTC()
		return &t
	}
	return &now
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func (im *Importer) writeFormResponses(ctx context.Context, b *ticketBatch, st *source.SourceTicket, ticket *types.Ticket) {
	for _, fv := range st.FieldValues() {
		value, ok := fv.Flatten()
		if !ok {
			continue
		}
		fieldID, ok := b.fields.Lookup(int64(fv.ID))
		if !ok {
			im.formResponseError(b, st, int64(fv.ID), fmt.Errorf("no field definition"))
			continue
		}
		resp := &types.FormResponse{TicketID: ticket.ID, FieldID: fieldID, Value: value}
		if err := im.store.CreateFormResponse(ctx, resp); err != nil {
			im.formResponseError(b, st, int64(fv.ID), err)
			continue
		}
		b.report.FormResponsesCreated++
	}
}

func (im *Importer) formResponseError(b *ticketBatch, st *source.SourceTicket, fieldID int64, err error) {
	im.log.Warn("form response failed", "ticket", st.SourceID(), "field", fieldID, "error", err)
	b.report.AddError(fmt.Sprintf("ticket #%d: field %d: %v", st.SourceID(), fieldID, err))
}
