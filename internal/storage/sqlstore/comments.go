package sqlstore

import (
	"context"
	"fmt"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

func (s *Store) CreateComment(ctx context.Context, comment *types.Comment) error {
	return s.retry(ctx, func() error {
		return s.createComment(ctx, s.db, comment)
	})
}

func (s *Store) createComment(ctx context.Context, q querier, comment *types.Comment) error {
	if comment.ID == "" {
		comment.ID = idgen.NewID("cmt")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO comments (id, ticket_id, author_id, body, is_internal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, comment.ID, comment.TicketID, comment.AuthorID, comment.Body, comment.IsInternal, formatTime(comment.CreatedAt))
	return s.classify(fmt.Sprintf("create comment on ticket %s", comment.TicketID), err)
}

// ListComments returns a ticket's comments oldest first.
func (s *Store) ListComments(ctx context.Context, ticketID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, author_id, body, is_internal, created_at
		FROM comments
		WHERE ticket_id = ?
		ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, wrapDBError("list comments", err)
	}
	defer rows.Close()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		var created string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Body, &c.IsInternal, &created); err != nil {
			return nil, wrapDBError("scan comment", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, wrapDBError("list comments", rows.Err())
}

func (s *Store) CreateFormResponse(ctx context.Context, resp *types.FormResponse) error {
	return s.retry(ctx, func() error {
		return s.createFormResponse(ctx, s.db, resp)
	})
}

func (s *Store) createFormResponse(ctx context.Context, q querier, resp *types.FormResponse) error {
	if resp.ID == "" {
		resp.ID = idgen.NewID("frs")
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = s.now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO form_responses (id, ticket_id, field_id, value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, resp.ID, resp.TicketID, resp.FieldID, resp.Value, formatTime(resp.CreatedAt))
	return s.classify(fmt.Sprintf("create form response on ticket %s", resp.TicketID), err)
}

func (s *Store) ListFormResponses(ctx context.Context, ticketID string) ([]*types.FormResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, field_id, value, created_at
		FROM form_responses
		WHERE ticket_id = ?
		ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, wrapDBError("list form responses", err)
	}
	defer rows.Close()

	var responses []*types.FormResponse
	for rows.Next() {
		var r types.FormResponse
		var created string
		if err := rows.Scan(&r.ID, &r.TicketID, &r.FieldID, &r.Value, &created); err != nil {
			return nil, wrapDBError("scan form response", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		responses = append(responses, &r)
	}
	return responses, wrapDBError("list form responses", rows.Err())
}

// GetStatistics counts rows in one round trip.
func (s *Store) GetStatistics(ctx context.Context) (*storage.Statistics, error) {
	var stats storage.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE role = ?),
			(SELECT COUNT(*) FROM users WHERE role = ?),
			(SELECT COUNT(*) FROM tickets),
			(SELECT COUNT(*) FROM comments),
			(SELECT COUNT(*) FROM field_definitions),
			(SELECT COUNT(*) FROM form_responses)
	`, string(types.RoleAdmin), string(types.RoleAgent)).Scan(
		&stats.Users, &stats.Admins, &stats.Agents, &stats.Tickets,
		&stats.Comments, &stats.FieldDefinitions, &stats.FormResponses,
	)
	if err != nil {
		return nil, wrapDBError("get statistics", err)
	}
	return &stats, nil
}

func (t *sqlTx) CreateComment(ctx context.Context, comment *types.Comment) error {
	return t.s.createComment(ctx, t.tx, comment)
}

func (t *sqlTx) CreateFormResponse(ctx context.Context, resp *types.FormResponse) error {
	return t.s.createFormResponse(ctx, t.tx, resp)
}
