// Package memory implements the storage interface in process memory.
// It enforces the same unique keys and references as the SQL backends and is
// used by tests and the "memory" backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// MemoryStorage is a mutex-guarded in-memory gateway.
type MemoryStorage struct {
	mu sync.RWMutex

	users        map[string]*types.User
	userByEmail  map[string]string
	userByExtID  map[string]string
	fields       map[string]*types.FieldDefinition
	fieldOrder   []string
	fieldBySrcID map[int64]string
	tickets      map[string]*types.Ticket
	ticketBySrc  map[int64]string
	ticketByNum  map[int64]string
	comments     map[string][]*types.Comment
	responses    map[string][]*types.FormResponse
	nextNumber   int64
	closed       bool

	now func() time.Time
}

var _ storage.Storage = (*MemoryStorage)(nil)

// New returns an empty store whose ticket sequence starts at 1.
func New() *MemoryStorage {
	return &MemoryStorage{
		users:        make(map[string]*types.User),
		userByEmail:  make(map[string]string),
		userByExtID:  make(map[string]string),
		fields:       make(map[string]*types.FieldDefinition),
		fieldBySrcID: make(map[int64]string),
		tickets:      make(map[string]*types.Ticket),
		ticketBySrc:  make(map[int64]string),
		ticketByNum:  make(map[int64]string),
		comments:     make(map[string][]*types.Comment),
		responses:    make(map[string][]*types.FormResponse),
		nextNumber:   1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStorage) checkOpen() error {
	if m.closed {
		return fmt.Errorf("memory storage is closed")
	}
	return nil
}

// Close marks the store closed; later calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	if user.ID == "" {
		user.ID = idgen.NewID("usr")
	}
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("create user %s: %w", user.ID, storage.ErrConflict)
	}
	if email := user.EmailValue(); email != "" {
		if _, ok := m.userByEmail[email]; ok {
			return fmt.Errorf("create user: email %s: %w", email, storage.ErrConflict)
		}
	}
	if user.ExternalID != nil && *user.ExternalID != "" {
		if _, ok := m.userByExtID[*user.ExternalID]; ok {
			return fmt.Errorf("create user: external id %s: %w", *user.ExternalID, storage.ErrConflict)
		}
	}
	m.stamp(&user.CreatedAt, &user.UpdatedAt)

	stored := cloneUser(user)
	m.users[stored.ID] = stored
	m.indexUser(stored)
	return nil
}

func (m *MemoryStorage) indexUser(u *types.User) {
	if email := u.EmailValue(); email != "" {
		m.userByEmail[email] = u.ID
	}
	if u.ExternalID != nil && *u.ExternalID != "" {
		m.userByExtID[*u.ExternalID] = u.ID
	}
}

func (m *MemoryStorage) unindexUser(u *types.User) {
	if email := u.EmailValue(); email != "" {
		delete(m.userByEmail, email)
	}
	if u.ExternalID != nil {
		delete(m.userByExtID, *u.ExternalID)
	}
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userByEmail[email]
	if !ok || email == "" {
		return nil, fmt.Errorf("get user by email %s: %w", email, storage.ErrNotFound)
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryStorage) GetUserByExternalID(ctx context.Context, externalID string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userByExtID[externalID]
	if !ok || externalID == "" {
		return nil, fmt.Errorf("get user by external id %s: %w", externalID, storage.ErrNotFound)
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	current, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update user %s: %w", id, storage.ErrNotFound)
	}

	next := cloneUser(current)
	if err := storage.ApplyUserUpdates(next, updates); err != nil {
		return err
	}
	if email := next.EmailValue(); email != "" && email != current.EmailValue() {
		if _, taken := m.userByEmail[email]; taken {
			return fmt.Errorf("update user %s: email %s: %w", id, email, storage.ErrConflict)
		}
	}
	if next.ExternalID != nil && *next.ExternalID != "" &&
		(current.ExternalID == nil || *current.ExternalID != *next.ExternalID) {
		if _, taken := m.userByExtID[*next.ExternalID]; taken {
			return fmt.Errorf("update user %s: external id %s: %w", id, *next.ExternalID, storage.ErrConflict)
		}
	}
	next.UpdatedAt = m.now()

	m.unindexUser(current)
	m.users[id] = next
	m.indexUser(next)
	return nil
}

// Field definitions

func (m *MemoryStorage) CreateFieldDefinition(ctx context.Context, field *types.FieldDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	if field.ID == "" {
		field.ID = idgen.NewID("fld")
	}
	if _, ok := m.fields[field.ID]; ok {
		return fmt.Errorf("create field %s: %w", field.ID, storage.ErrConflict)
	}
	if field.SourceFieldID != nil {
		if _, ok := m.fieldBySrcID[*field.SourceFieldID]; ok {
			return fmt.Errorf("create field: source id %d: %w", *field.SourceFieldID, storage.ErrConflict)
		}
	}
	m.stamp(&field.CreatedAt, &field.UpdatedAt)

	stored := cloneField(field)
	m.fields[stored.ID] = stored
	m.fieldOrder = append(m.fieldOrder, stored.ID)
	if stored.SourceFieldID != nil {
		m.fieldBySrcID[*stored.SourceFieldID] = stored.ID
	}
	return nil
}

func (m *MemoryStorage) GetFieldDefinition(ctx context.Context, id string) (*types.FieldDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fields[id]
	if !ok {
		return nil, fmt.Errorf("get field %s: %w", id, storage.ErrNotFound)
	}
	return cloneField(f), nil
}

func (m *MemoryStorage) GetFieldBySourceID(ctx context.Context, sourceFieldID int64) (*types.FieldDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.fieldBySrcID[sourceFieldID]
	if !ok {
		return nil, fmt.Errorf("get field by source id %d: %w", sourceFieldID, storage.ErrNotFound)
	}
	return cloneField(m.fields[id]), nil
}

// GetFieldByLabel returns the oldest definition with the given label.
func (m *MemoryStorage) GetFieldByLabel(ctx context.Context, label string) (*types.FieldDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.fieldOrder {
		if f := m.fields[id]; f.Label == label {
			return cloneField(f), nil
		}
	}
	return nil, fmt.Errorf("get field by label %q: %w", label, storage.ErrNotFound)
}

func (m *MemoryStorage) UpdateFieldDefinition(ctx context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	current, ok := m.fields[id]
	if !ok {
		return fmt.Errorf("update field %s: %w", id, storage.ErrNotFound)
	}

	next := cloneField(current)
	if err := storage.ApplyFieldUpdates(next, updates); err != nil {
		return err
	}
	if next.SourceFieldID != nil {
		if owner, taken := m.fieldBySrcID[*next.SourceFieldID]; taken && owner != id {
			return fmt.Errorf("update field %s: source id %d: %w", id, *next.SourceFieldID, storage.ErrConflict)
		}
	}
	next.UpdatedAt = m.now()

	if current.SourceFieldID != nil {
		delete(m.fieldBySrcID, *current.SourceFieldID)
	}
	m.fields[id] = next
	if next.SourceFieldID != nil {
		m.fieldBySrcID[*next.SourceFieldID] = id
	}
	return nil
}

// Tickets

func (m *MemoryStorage) CreateTicket(ctx context.Context, ticket *types.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createTicketLocked(ticket)
}

func (m *MemoryStorage) createTicketLocked(ticket *types.Ticket) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if ticket.ID == "" {
		ticket.ID = idgen.NewID("tkt")
	}
	if _, ok := m.tickets[ticket.ID]; ok {
		return fmt.Errorf("create ticket %s: %w", ticket.ID, storage.ErrConflict)
	}
	if ticket.SourceTicketNumber != nil {
		if _, ok := m.ticketBySrc[*ticket.SourceTicketNumber]; ok {
			return fmt.Errorf("create ticket: source number %d: %w", *ticket.SourceTicketNumber, storage.ErrConflict)
		}
	}
	if _, ok := m.users[ticket.RequesterID]; !ok {
		return fmt.Errorf("create ticket: requester %s: %w", ticket.RequesterID, storage.ErrReference)
	}
	if ticket.AssigneeID != nil {
		if _, ok := m.users[*ticket.AssigneeID]; !ok {
			return fmt.Errorf("create ticket: assignee %s: %w", *ticket.AssigneeID, storage.ErrReference)
		}
	}

	assigned := false
	if ticket.Number == 0 {
		ticket.Number = m.nextNumber
		assigned = true
	}
	if _, ok := m.ticketByNum[ticket.Number]; ok {
		if assigned {
			ticket.Number = 0
		}
		return fmt.Errorf("create ticket: number %d: %w", ticket.Number, storage.ErrConflict)
	}
	if assigned {
		m.nextNumber++
	}
	m.stamp(&ticket.CreatedAt, &ticket.UpdatedAt)

	stored := cloneTicket(ticket)
	m.tickets[stored.ID] = stored
	m.ticketByNum[stored.Number] = stored.ID
	if stored.SourceTicketNumber != nil {
		m.ticketBySrc[*stored.SourceTicketNumber] = stored.ID
	}
	return nil
}

func (m *MemoryStorage) deleteTicketLocked(id string) {
	t, ok := m.tickets[id]
	if !ok {
		return
	}
	delete(m.tickets, id)
	delete(m.ticketByNum, t.Number)
	if t.SourceTicketNumber != nil {
		delete(m.ticketBySrc, *t.SourceTicketNumber)
	}
	delete(m.comments, id)
	delete(m.responses, id)
}

func (m *MemoryStorage) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("get ticket %s: %w", id, storage.ErrNotFound)
	}
	return cloneTicket(t), nil
}

func (m *MemoryStorage) GetTicketBySourceNumber(ctx context.Context, sourceNumber int64) (*types.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ticketBySrc[sourceNumber]
	if !ok {
		return nil, fmt.Errorf("get ticket by source number %d: %w", sourceNumber, storage.ErrNotFound)
	}
	return cloneTicket(m.tickets[id]), nil
}

func (m *MemoryStorage) MaxTicketNumber(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var highest int64
	for n := range m.ticketByNum {
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (m *MemoryStorage) GetTicketSequence(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextNumber, nil
}

func (m *MemoryStorage) SetTicketSequence(ctx context.Context, next int64) error {
	if next < 1 {
		return fmt.Errorf("invalid ticket sequence %d", next)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.nextNumber = next
	return nil
}

// Comments and form responses

func (m *MemoryStorage) CreateComment(ctx context.Context, comment *types.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCommentLocked(comment)
}

func (m *MemoryStorage) createCommentLocked(comment *types.Comment) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.tickets[comment.TicketID]; !ok {
		return fmt.Errorf("create comment: ticket %s: %w", comment.TicketID, storage.ErrReference)
	}
	if _, ok := m.users[comment.AuthorID]; !ok {
		return fmt.Errorf("create comment: author %s: %w", comment.AuthorID, storage.ErrReference)
	}
	if comment.ID == "" {
		comment.ID = idgen.NewID("cmt")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = m.now()
	}
	c := *comment
	m.comments[c.TicketID] = append(m.comments[c.TicketID], &c)
	return nil
}

func (m *MemoryStorage) ListComments(ctx context.Context, ticketID string) ([]*types.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Comment, 0, len(m.comments[ticketID]))
	for _, c := range m.comments[ticketID] {
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) CreateFormResponse(ctx context.Context, resp *types.FormResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createFormResponseLocked(resp)
}

func (m *MemoryStorage) createFormResponseLocked(resp *types.FormResponse) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.tickets[resp.TicketID]; !ok {
		return fmt.Errorf("create form response: ticket %s: %w", resp.TicketID, storage.ErrReference)
	}
	if _, ok := m.fields[resp.FieldID]; !ok {
		return fmt.Errorf("create form response: field %s: %w", resp.FieldID, storage.ErrReference)
	}
	for _, existing := range m.responses[resp.TicketID] {
		if existing.FieldID == resp.FieldID {
			return fmt.Errorf("create form response: ticket %s field %s: %w", resp.TicketID, resp.FieldID, storage.ErrConflict)
		}
	}
	if resp.ID == "" {
		resp.ID = idgen.NewID("frs")
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = m.now()
	}
	r := *resp
	m.responses[r.TicketID] = append(m.responses[r.TicketID], &r)
	return nil
}

func (m *MemoryStorage) ListFormResponses(ctx context.Context, ticketID string) ([]*types.FormResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.FormResponse, 0, len(m.responses[ticketID]))
	for _, r := range m.responses[ticketID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStorage) GetStatistics(ctx context.Context) (*storage.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &storage.Statistics{
		Users:            len(m.users),
		Tickets:          len(m.tickets),
		FieldDefinitions: len(m.fields),
	}
	for _, u := range m.users {
		switch u.Role {
		case types.RoleAdmin:
			stats.Admins++
		case types.RoleAgent:
			stats.Agents++
		}
	}
	for _, cs := range m.comments {
		stats.Comments += len(cs)
	}
	for _, rs := range m.responses {
		stats.FormResponses += len(rs)
	}
	return stats, nil
}

func (m *MemoryStorage) stamp(created, updated *time.Time) {
	now := m.now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func cloneUser(u *types.User) *types.User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	if u.ExternalID != nil {
		x := *u.ExternalID
		c.ExternalID = &x
	}
	if u.LastSeenAt != nil {
		t := *u.LastSeenAt
		c.LastSeenAt = &t
	}
	return &c
}

func cloneField(f *types.FieldDefinition) *types.FieldDefinition {
	c := *f
	if f.SourceFieldID != nil {
		n := *f.SourceFieldID
		c.SourceFieldID = &n
	}
	return &c
}

func cloneTicket(t *types.Ticket) *types.Ticket {
	c := *t
	if t.SourceTicketNumber != nil {
		n := *t.SourceTicketNumber
		c.SourceTicketNumber = &n
	}
	if t.AssigneeID != nil {
		a := *t.AssigneeID
		c.AssigneeID = &a
	}
	if t.SolvedAt != nil {
		s := *t.SolvedAt
		c.SolvedAt = &s
	}
	c.Tags = append([]string(nil), t.Tags...)
	return &c
}
