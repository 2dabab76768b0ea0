// Package storage defines the gateway the import pipeline writes through.
//
// Implementations live in the memory, sqlite and mysql sub-packages; the
// factory sub-package picks one from configuration. Every implementation
// enforces the same unique keys (user email, user external id, field source
// id, ticket source number, ticket number) and the same references (ticket
// requester/assignee, comment ticket/author, form response ticket/field).
package storage

import (
	"context"
	"errors"

	"github.com/ticketport/ticketport/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a unique key.
var ErrConflict = errors.New("conflict")

// ErrReference is returned when a write points at a record that does not exist.
var ErrReference = errors.New("referenced record does not exist")

// Storage is the gateway used by the reconcilers and the importer.
// Lookups return ErrNotFound (possibly wrapped) when nothing matches.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*types.User, error)
	UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error

	// Custom field definitions
	CreateFieldDefinition(ctx context.Context, field *types.FieldDefinition) error
	GetFieldDefinition(ctx context.Context, id string) (*types.FieldDefinition, error)
	GetFieldBySourceID(ctx context.Context, sourceFieldID int64) (*types.FieldDefinition, error)
	GetFieldByLabel(ctx context.Context, label string) (*types.FieldDefinition, error)
	UpdateFieldDefinition(ctx context.Context, id string, updates map[string]interface{}) error

	// Tickets
	CreateTicket(ctx context.Context, ticket *types.Ticket) error
	GetTicket(ctx context.Context, id string) (*types.Ticket, error)
	GetTicketBySourceNumber(ctx context.Context, sourceNumber int64) (*types.Ticket, error)
	MaxTicketNumber(ctx context.Context) (int64, error)
	GetTicketSequence(ctx context.Context) (int64, error)
	SetTicketSequence(ctx context.Context, next int64) error

	// Comments and form responses
	CreateComment(ctx context.Context, comment *types.Comment) error
	ListComments(ctx context.Context, ticketID string) ([]*types.Comment, error)
	CreateFormResponse(ctx context.Context, resp *types.FormResponse) error
	ListFormResponses(ctx context.Context, ticketID string) ([]*types.FormResponse, error)

	// Statistics
	GetStatistics(ctx context.Context) (*Statistics, error)

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
}

// Transaction is the write subset available inside RunInTransaction. If fn
// returns an error every write made through tx is rolled back. fn must not
// call back into the Storage; in-memory SQLite holds a single connection.
type Transaction interface {
	CreateTicket(ctx context.Context, ticket *types.Ticket) error
	CreateComment(ctx context.Context, comment *types.Comment) error
	CreateFormResponse(ctx context.Context, resp *types.FormResponse) error
}

// Statistics counts stored records.
type Statistics struct {
	Users            int `json:"users"`
	Admins           int `json:"admins"`
	Agents           int `json:"agents"`
	Tickets          int `json:"tickets"`
	Comments         int `json:"comments"`
	FieldDefinitions int `json:"field_definitions"`
	FormResponses    int `json:"form_responses"`
}

// Allowed update keys. Implementations reject anything else.
var (
	UserUpdateKeys = map[string]bool{
		"email":        true,
		"external_id":  true,
		"role":         true,
		"name":         true,
		"time_zone":    true,
		"last_seen_at": true,
	}
	FieldUpdateKeys = map[string]bool{
		"source_field_id": true,
		"label":           true,
		"field_type":      true,
		"required":        true,
		"description":     true,
	}
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
