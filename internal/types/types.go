// Package types defines the canonical records of the help-desk schema that the
// import pipeline writes into.
package types

import (
	"fmt"
	"time"
)

// Role is the access level of a canonical user.
type Role string

// User roles
const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// IsValid checks if the role value is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is a canonical identity. Email is the preferred unique key; ExternalID
// is the synthetic key used when a source user arrived without an email or to
// remember which source id a user was created from.
type User struct {
	ID         string     `json:"id"`
	Email      *string    `json:"email,omitempty"`
	ExternalID *string    `json:"external_id,omitempty"`
	Role       Role       `json:"role"`
	Name       string     `json:"name,omitempty"`
	TimeZone   string     `json:"time_zone,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// EmailValue returns the email or "" when unset.
func (u *User) EmailValue() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// Validate checks that the user can be persisted
func (u *User) Validate() error {
	if !u.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	if (u.Email == nil || *u.Email == "") && (u.ExternalID == nil || *u.ExternalID == "") {
		return fmt.Errorf("user requires an email or an external id")
	}
	return nil
}

// FieldType is the input type of a custom field definition.
type FieldType string

// Field types
const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

func (f FieldType) IsValid() bool {
	switch f {
	case FieldText, FieldTextarea, FieldSelect, FieldCheckbox:
		return true
	}
	return false
}

// FieldDefinition describes a custom ticket field. Definitions created before
// the source field catalog is imported are placeholders whose label is
// PlaceholderLabel(sourceFieldID).
type FieldDefinition struct {
	ID            string    `json:"id"`
	SourceFieldID *int64    `json:"source_field_id,omitempty"`
	Label         string    `json:"label"`
	FieldType     FieldType `json:"field_type"`
	Required      bool      `json:"required"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlaceholderLabel is the synthesized label of a field that a ticket referenced
// before the catalog describing it was imported.
func PlaceholderLabel(sourceFieldID int64) string {
	return fmt.Sprintf("Source Field %d", sourceFieldID)
}

// IsPlaceholder reports whether the definition still carries its synthesized label.
func (f *FieldDefinition) IsPlaceholder() bool {
	return f.SourceFieldID != nil && f.Label == PlaceholderLabel(*f.SourceFieldID)
}

// Status represents the state of a ticket
type Status string

// Ticket status constants
const (
	StatusNew     Status = "NEW"
	StatusOpen    Status = "OPEN"
	StatusPending Status = "PENDING"
	StatusOnHold  Status = "ON_HOLD"
	StatusSolved  Status = "SOLVED"
	StatusClosed  Status = "CLOSED"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusOpen, StatusPending, StatusOnHold, StatusSolved, StatusClosed:
		return true
	}
	return false
}

// IsResolved reports whether the status ends the ticket lifecycle.
func (s Status) IsResolved() bool {
	return s == StatusSolved || s == StatusClosed
}

// Priority represents ticket urgency
type Priority string

// Priority constants
const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is a canonical help-desk ticket. SourceTicketNumber is the dedup key
// for imports and is distinct from the internal primary key. Imported tickets
// are never modified by later imports.
type Ticket struct {
	ID                 string     `json:"id"`
	Number             int64      `json:"number"`
	SourceTicketNumber *int64     `json:"source_ticket_number,omitempty"`
	Subject            string     `json:"subject"`
	Description        string     `json:"description,omitempty"`
	Status             Status     `json:"status"`
	Priority           Priority   `json:"priority"`
	RequesterID        string     `json:"requester_id"`
	AssigneeID         *string    `json:"assignee_id,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	SolvedAt           *time.Time `json:"solved_at,omitempty"`
}

// Validate checks if the ticket has valid field values
func (t *Ticket) Validate() error {
	if len(t.Subject) == 0 {
		return fmt.Errorf("subject is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.RequesterID == "" {
		return fmt.Errorf("requester is required")
	}
	return nil
}

// Comment belongs to exactly one ticket and one existing author.
type Comment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// FormResponse is the flattened value of one custom field on one ticket.
type FormResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	FieldID   string    `json:"field_id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
