// Package teststore provides backend-agnostic storage test helpers.
//
// RunConformance exercises a storage.Storage implementation through the
// interface only, so the memory, SQLite and MySQL gateways are held to the
// same unique keys and references.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    teststore.RunConformance(t, func(t *testing.T) storage.Storage {
//	        return memory.New()
//	    })
//	}
package teststore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) storage.Storage

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }

// CreateUser stores a user with the given email and role and returns it.
func CreateUser(t testing.TB, s storage.Storage, email string, role types.Role) *types.User {
	t.Helper()
	u := &types.User{Email: Str(email), Role: role, Name: email}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("teststore: create user %s: %v", email, err)
	}
	return u
}

// CreateAdmin stores the importing administrator.
func CreateAdmin(t testing.TB, s storage.Storage) *types.User {
	t.Helper()
	return CreateUser(t, s, "admin@example.com", types.RoleAdmin)
}

// NewTicket returns an unsaved ticket requested by requesterID.
func NewTicket(requesterID string, sourceNumber int64) *types.Ticket {
	return &types.Ticket{
		Number:             sourceNumber,
		SourceTicketNumber: Int64(sourceNumber),
		Subject:            "ticket",
		Status:             types.StatusOpen,
		Priority:           types.PriorityNormal,
		RequesterID:        requesterID,
	}
}

// RunConformance runs the shared storage contract against newStore.
func RunConformance(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"UserLookups", testUserLookups},
		{"UserUniqueKeys", testUserUniqueKeys},
		{"UpdateUser", testUpdateUser},
		{"FieldDefinitions", testFieldDefinitions},
		{"TicketRoundTrip", testTicketRoundTrip},
		{"TicketReferences", testTicketReferences},
		{"TicketNumbering", testTicketNumbering},
		{"CommentsAndResponses", testCommentsAndResponses},
		{"TransactionRollback", testTransactionRollback},
		{"Statistics", testStatistics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testUserLookups(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	u := &types.User{
		Email:      Str("agent@example.com"),
		ExternalID: Str("source-user-42"),
		Role:       types.RoleAgent,
		Name:       "Agent",
		TimeZone:   "Europe/Berlin",
		LastSeenAt: &seen,
	}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID, "store assigns an id")
	assert.False(t, u.CreatedAt.IsZero(), "store stamps created_at")

	byEmail, err := s.GetUserByEmail(ctx, "agent@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, types.RoleAgent, byEmail.Role)
	assert.Equal(t, "Europe/Berlin", byEmail.TimeZone)
	require.NotNil(t, byEmail.LastSeenAt)
	assert.True(t, seen.Equal(*byEmail.LastSeenAt))

	byExt, err := s.GetUserByExternalID(ctx, "source-user-42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byExt.ID)

	byID, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", byID.EmailValue())

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, storage.IsNotFound(err), "missing email: %v", err)
	_, err = s.GetUserByExternalID(ctx, "source-user-43")
	assert.True(t, storage.IsNotFound(err), "missing external id: %v", err)
	_, err = s.GetUser(ctx, "usr-missing")
	assert.True(t, storage.IsNotFound(err), "missing id: %v", err)
}

func testUserUniqueKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &types.User{Email: Str("a@example.com"), Role: types.RoleUser}))
	require.NoError(t, s.CreateUser(ctx, &types.User{ExternalID: Str("source-user-1"), Role: types.RoleUser}))
	// Users without email may coexist.
	require.NoError(t, s.CreateUser(ctx, &types.User{ExternalID: Str("source-user-2"), Role: types.RoleUser}))

	err := s.CreateUser(ctx, &types.User{Email: Str("a@example.com"), Role: types.RoleAgent})
	assert.True(t, storage.IsConflict(err), "duplicate email: %v", err)

	err = s.CreateUser(ctx, &types.User{ExternalID: Str("source-user-1"), Role: types.RoleUser})
	assert.True(t, storage.IsConflict(err), "duplicate external id: %v", err)
}

func testUpdateUser(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	u := &types.User{ExternalID: Str("source-user-9"), Role: types.RoleUser}
	require.NoError(t, s.CreateUser(ctx, u))
	CreateUser(t, s, "taken@example.com", types.RoleUser)

	seen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateUser(ctx, u.ID, map[string]interface{}{
		"email":        "filled@example.com",
		"name":         "Filled In",
		"last_seen_at": seen,
	}))

	got, err := s.GetUserByEmail(ctx, "filled@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Filled In", got.Name)
	assert.Equal(t, "source-user-9", *got.ExternalID, "untouched fields survive")

	err = s.UpdateUser(ctx, u.ID, map[string]interface{}{"email": "taken@example.com"})
	assert.True(t, storage.IsConflict(err), "update onto taken email: %v", err)

	err = s.UpdateUser(ctx, u.ID, map[string]interface{}{"password": "x"})
	assert.Error(t, err, "unknown update key")

	err = s.UpdateUser(ctx, "usr-missing", map[string]interface{}{"name": "x"})
	assert.True(t, storage.IsNotFound(err), "update missing user: %v", err)
}

func testFieldDefinitions(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	placeholder := &types.FieldDefinition{
		Label:     types.PlaceholderLabel(77),
		FieldType: types.FieldText,
	}
	require.NoError(t, s.CreateFieldDefinition(ctx, placeholder))

	byLabel, err := s.GetFieldByLabel(ctx, "Source Field 77")
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, byLabel.ID)
	assert.Nil(t, byLabel.SourceFieldID)

	_, err = s.GetFieldBySourceID(ctx, 77)
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, s.UpdateFieldDefinition(ctx, placeholder.ID, map[string]interface{}{
		"source_field_id": int64(77),
		"label":           "Order Number",
		"field_type":      types.FieldText,
		"required":        true,
		"description":     "from catalog",
	}))

	bySource, err := s.GetFieldBySourceID(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, bySource.ID, "promotion keeps the id")
	assert.Equal(t, "Order Number", bySource.Label)
	assert.True(t, bySource.Required)
	assert.Equal(t, "from catalog", bySource.Description)

	err = s.CreateFieldDefinition(ctx, &types.FieldDefinition{SourceFieldID: Int64(77), Label: "dup", FieldType: types.FieldText})
	assert.True(t, storage.IsConflict(err), "duplicate source id: %v", err)

	other := &types.FieldDefinition{SourceFieldID: Int64(78), Label: "Other", FieldType: types.FieldSelect}
	require.NoError(t, s.CreateFieldDefinition(ctx, other))
	err = s.UpdateFieldDefinition(ctx, other.ID, map[string]interface{}{"source_field_id": int64(77)})
	assert.True(t, storage.IsConflict(err), "update onto taken source id: %v", err)

	got, err := s.GetFieldDefinition(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.FieldSelect, got.FieldType)
}

func testTicketRoundTrip(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)
	agent := CreateUser(t, s, "agent@example.com", types.RoleAgent)

	created := time.Date(2023, 6, 1, 9, 30, 0, 0, time.UTC)
	solved := created.Add(48 * time.Hour)
	tk := NewTicket(admin.ID, 1001)
	tk.Subject = "Printer on fire"
	tk.Description = "It is very warm"
	tk.Status = types.StatusSolved
	tk.Priority = types.PriorityUrgent
	tk.AssigneeID = &agent.ID
	tk.Tags = []string{"hardware", "fire"}
	tk.CreatedAt = created
	tk.UpdatedAt = solved
	tk.SolvedAt = &solved
	require.NoError(t, s.CreateTicket(ctx, tk))

	got, err := s.GetTicketBySourceNumber(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, int64(1001), got.Number)
	assert.Equal(t, "Printer on fire", got.Subject)
	assert.Equal(t, "It is very warm", got.Description)
	assert.Equal(t, types.StatusSolved, got.Status)
	assert.Equal(t, types.PriorityUrgent, got.Priority)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, agent.ID, *got.AssigneeID)
	assert.Equal(t, []string{"hardware", "fire"}, got.Tags)
	assert.True(t, created.Equal(got.CreatedAt), "created_at preserved: %v", got.CreatedAt)
	require.NotNil(t, got.SolvedAt)
	assert.True(t, solved.Equal(*got.SolvedAt))

	byID, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, byID.ID)

	err = s.CreateTicket(ctx, NewTicket(admin.ID, 1001))
	assert.True(t, storage.IsConflict(err), "duplicate source number: %v", err)

	_, err = s.GetTicketBySourceNumber(ctx, 1002)
	assert.True(t, storage.IsNotFound(err))
}

func testTicketReferences(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)

	err := s.CreateTicket(ctx, NewTicket("usr-ghost", 1))
	assert.ErrorIs(t, err, storage.ErrReference, "unknown requester")

	tk := NewTicket(admin.ID, 2)
	ghost := "usr-ghost"
	tk.AssigneeID = &ghost
	err = s.CreateTicket(ctx, tk)
	assert.ErrorIs(t, err, storage.ErrReference, "unknown assignee")

	_, err = s.GetTicketBySourceNumber(ctx, 2)
	assert.True(t, storage.IsNotFound(err), "rejected ticket must not be stored")
}

func testTicketNumbering(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)

	highest, err := s.MaxTicketNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), highest)

	next, err := s.GetTicketSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	native := &types.Ticket{Subject: "native", Status: types.StatusNew, Priority: types.PriorityLow, RequesterID: admin.ID}
	require.NoError(t, s.CreateTicket(ctx, native))
	assert.Equal(t, int64(1), native.Number, "sequence assigns the number")

	require.NoError(t, s.CreateTicket(ctx, NewTicket(admin.ID, 500)))
	highest, err = s.MaxTicketNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), highest)

	next, err = s.GetTicketSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next, "imports with explicit numbers leave the sequence alone")

	require.NoError(t, s.SetTicketSequence(ctx, 501))
	native2 := &types.Ticket{Subject: "after reset", Status: types.StatusNew, Priority: types.PriorityLow, RequesterID: admin.ID}
	require.NoError(t, s.CreateTicket(ctx, native2))
	assert.Equal(t, int64(501), native2.Number)

	err = s.CreateTicket(ctx, &types.Ticket{Number: 500, Subject: "clash", Status: types.StatusNew, Priority: types.PriorityLow, RequesterID: admin.ID})
	assert.True(t, storage.IsConflict(err), "duplicate ticket number: %v", err)
}

func testCommentsAndResponses(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)
	tk := NewTicket(admin.ID, 7)
	require.NoError(t, s.CreateTicket(ctx, tk))
	field := &types.FieldDefinition{SourceFieldID: Int64(5), Label: "Order", FieldType: types.FieldText}
	require.NoError(t, s.CreateFieldDefinition(ctx, field))

	first := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: admin.ID, Body: "second", CreatedAt: first.Add(time.Hour)}))
	require.NoError(t, s.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: admin.ID, Body: "first", IsInternal: true, CreatedAt: first}))

	comments, err := s.ListComments(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Body, "comments are ordered by created_at")
	assert.True(t, comments[0].IsInternal)
	assert.False(t, comments[1].IsInternal)

	err = s.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: "usr-ghost", Body: "x"})
	assert.ErrorIs(t, err, storage.ErrReference, "unknown author")
	err = s.CreateComment(ctx, &types.Comment{TicketID: "tkt-ghost", AuthorID: admin.ID, Body: "x"})
	assert.ErrorIs(t, err, storage.ErrReference, "unknown ticket")

	require.NoError(t, s.CreateFormResponse(ctx, &types.FormResponse{TicketID: tk.ID, FieldID: field.ID, Value: "A-1"}))
	responses, err := s.ListFormResponses(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "A-1", responses[0].Value)

	err = s.CreateFormResponse(ctx, &types.FormResponse{TicketID: tk.ID, FieldID: "fld-ghost", Value: "x"})
	assert.ErrorIs(t, err, storage.ErrReference, "unknown field")
}

func testTransactionRollback(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		tk := NewTicket(admin.ID, 900)
		if err := tx.CreateTicket(ctx, tk); err != nil {
			return err
		}
		if err := tx.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: admin.ID, Body: "kept?"}); err != nil {
			return err
		}
		return tx.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: "usr-ghost", Body: "boom"})
	})
	require.Error(t, err)

	_, err = s.GetTicketBySourceNumber(ctx, 900)
	assert.True(t, storage.IsNotFound(err), "ticket rolled back: %v", err)
	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Comments)

	var ticketID string
	require.NoError(t, s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		tk := NewTicket(admin.ID, 901)
		if err := tx.CreateTicket(ctx, tk); err != nil {
			return err
		}
		ticketID = tk.ID
		return tx.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: admin.ID, Body: "hello"})
	}))
	comments, err := s.ListComments(ctx, ticketID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func testStatistics(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	admin := CreateAdmin(t, s)
	CreateUser(t, s, "agent@example.com", types.RoleAgent)
	CreateUser(t, s, "user@example.com", types.RoleUser)
	tk := NewTicket(admin.ID, 1)
	require.NoError(t, s.CreateTicket(ctx, tk))
	require.NoError(t, s.CreateComment(ctx, &types.Comment{TicketID: tk.ID, AuthorID: admin.ID, Body: "x"}))

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 1, stats.Admins)
	assert.Equal(t, 1, stats.Agents)
	assert.Equal(t, 1, stats.Tickets)
	assert.Equal(t, 1, stats.Comments)
	assert.Equal(t, 0, stats.FormResponses)
}
