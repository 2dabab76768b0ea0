package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/types"
)

// CreateTicket inserts a ticket. A zero Number takes the next value of the
// ticket sequence; an explicit Number leaves the sequence untouched.
func (s *Store) CreateTicket(ctx context.Context, ticket *types.Ticket) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createTicket(ctx, tx, ticket)
	})
}

func (s *Store) createTicket(ctx context.Context, q querier, ticket *types.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = idgen.NewID("tkt")
	}
	op := fmt.Sprintf("create ticket %s", ticket.ID)

	assigned := false
	if ticket.Number == 0 {
		var next int64
		if err := q.QueryRowContext(ctx, `SELECT next_number FROM ticket_sequence WHERE id = 1`).Scan(&next); err != nil {
			return wrapDBError("read ticket sequence", err)
		}
		if _, err := q.ExecContext(ctx, `UPDATE ticket_sequence SET next_number = ? WHERE id = 1`, next+1); err != nil {
			return wrapDBError("advance ticket sequence", err)
		}
		ticket.Number = next
		assigned = true
	}

	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.now()
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	tags, err := encodeTags(ticket.Tags)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ticket.ID, ticket.Number, nullInt64(ticket.SourceTicketNumber), ticket.Subject, ticket.Description,
		string(ticket.Status), string(ticket.Priority), ticket.RequesterID, nullString(ticket.AssigneeID), tags,
		formatTime(ticket.CreatedAt), formatTime(ticket.UpdatedAt), formatTimePtr(ticket.SolvedAt))
	if err != nil {
		if assigned {
			ticket.Number = 0
		}
		return s.classify(op, err)
	}
	return nil
}

func (s *Store) getTicketWhere(ctx context.Context, op, where string, arg interface{}) (*types.Ticket, error) {
	var ticket *types.Ticket
	err := s.queryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		ticket, scanErr = scanTicket(row)
		return scanErr
	}, `SELECT `+ticketColumns+` FROM tickets WHERE `+where, arg)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	return s.getTicketWhere(ctx, fmt.Sprintf("get ticket %s", id), "id = ?", id)
}

func (s *Store) GetTicketBySourceNumber(ctx context.Context, sourceNumber int64) (*types.Ticket, error) {
	return s.getTicketWhere(ctx, fmt.Sprintf("get ticket by source number %d", sourceNumber),
		"source_ticket_number = ?", sourceNumber)
}

func (s *Store) MaxTicketNumber(ctx context.Context) (int64, error) {
	var highest int64
	err := s.queryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&highest)
	}, `SELECT COALESCE(MAX(number), 0) FROM tickets`)
	if err != nil {
		return 0, wrapDBError("max ticket number", err)
	}
	return highest, nil
}

func (s *Store) GetTicketSequence(ctx context.Context) (int64, error) {
	var next int64
	err := s.queryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&next)
	}, `SELECT next_number FROM ticket_sequence WHERE id = 1`)
	if err != nil {
		return 0, wrapDBError("read ticket sequence", err)
	}
	return next, nil
}

func (s *Store) SetTicketSequence(ctx context.Context, next int64) error {
	if next < 1 {
		return fmt.Errorf("invalid ticket sequence %d", next)
	}
	_, err := s.execContext(ctx, `UPDATE ticket_sequence SET next_number = ? WHERE id = 1`, next)
	return wrapDBError("set ticket sequence", err)
}

func (t *sqlTx) CreateTicket(ctx context.Context, ticket *types.Ticket) error {
	return t.s.createTicket(ctx, t.tx, ticket)
}
