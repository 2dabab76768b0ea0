package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ticketport/ticketport/internal/types"
)

// timeLayout is fixed width so string comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use plain RFC3339.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func nullInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}

const userColumns = `id, email, external_id, role, name, time_zone, last_seen_at, created_at, updated_at`

func scanUser(sc scanner) (*types.User, error) {
	var (
		u                 types.User
		email, externalID sql.NullString
		lastSeen          sql.NullString
		role              string
		created, updated  string
	)
	if err := sc.Scan(&u.ID, &email, &externalID, &role, &u.Name, &u.TimeZone, &lastSeen, &created, &updated); err != nil {
		return nil, err
	}
	u.Email = stringPtr(email)
	u.ExternalID = stringPtr(externalID)
	u.Role = types.Role(role)

	var err error
	if u.LastSeenAt, err = parseNullTime(lastSeen); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

const fieldColumns = `id, source_field_id, label, field_type, required, description, created_at, updated_at`

func scanField(sc scanner) (*types.FieldDefinition, error) {
	var (
		f                types.FieldDefinition
		sourceID         sql.NullInt64
		fieldType        string
		created, updated string
	)
	if err := sc.Scan(&f.ID, &sourceID, &f.Label, &fieldType, &f.Required, &f.Description, &created, &updated); err != nil {
		return nil, err
	}
	f.SourceFieldID = int64Ptr(sourceID)
	f.FieldType = types.FieldType(fieldType)

	var err error
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &f, nil
}

const ticketColumns = `id, number, source_ticket_number, subject, description, status, priority,
	requester_id, assignee_id, tags, created_at, updated_at, solved_at`

func scanTicket(sc scanner) (*types.Ticket, error) {
	var (
		t                types.Ticket
		sourceNumber     sql.NullInt64
		assignee         sql.NullString
		tags             sql.NullString
		status, priority string
		created, updated string
		solved           sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.Number, &sourceNumber, &t.Subject, &t.Description, &status, &priority,
		&t.RequesterID, &assignee, &tags, &created, &updated, &solved); err != nil {
		return nil, err
	}
	t.SourceTicketNumber = int64Ptr(sourceNumber)
	t.AssigneeID = stringPtr(assignee)
	t.Status = types.Status(status)
	t.Priority = types.Priority(priority)

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("invalid stored tags for ticket %s: %w", t.ID, err)
		}
	}

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if t.SolvedAt, err = parseNullTime(solved); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeTags(tags []string) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}
