package memory

import (
	"context"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// memoryTx writes straight into the store and keeps an undo log.
type memoryTx struct {
	m         *MemoryStorage
	tickets   []string
	comments  []*types.Comment
	responses []*types.FormResponse
}

// RunInTransaction runs fn and undoes its writes if fn returns an error.
// Writes are visible to other readers before commit.
func (m *MemoryStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx := &memoryTx{m: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (tx *memoryTx) CreateTicket(ctx context.Context, ticket *types.Ticket) error {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if err := tx.m.createTicketLocked(ticket); err != nil {
		return err
	}
	tx.tickets = append(tx.tickets, ticket.ID)
	return nil
}

func (tx *memoryTx) CreateComment(ctx context.Context, comment *types.Comment) error {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if err := tx.m.createCommentLocked(comment); err != nil {
		return err
	}
	tx.comments = append(tx.comments, comment)
	return nil
}

func (tx *memoryTx) CreateFormResponse(ctx context.Context, resp *types.FormResponse) error {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if err := tx.m.createFormResponseLocked(resp); err != nil {
		return err
	}
	tx.responses = append(tx.responses, resp)
	return nil
}

func (tx *memoryTx) rollback() {
	m := tx.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range tx.comments {
		m.comments[c.TicketID] = removeComment(m.comments[c.TicketID], c.ID)
	}
	for _, r := range tx.responses {
		m.responses[r.TicketID] = removeResponse(m.responses[r.TicketID], r.ID)
	}
	for _, id := range tx.tickets {
		m.deleteTicketLocked(id)
	}
}

func removeComment(list []*types.Comment, id string) []*types.Comment {
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func removeResponse(list []*types.FormResponse, id string) []*types.FormResponse {
	out := list[:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
