// Package source decodes export dumps from the third-party ticketing platform
// into typed source records. Nothing in this package touches storage.
package source

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat means the upload parsed as JSON but has no recognizable
	// shape (no record array, no wrapper property, no identifying field).
	ErrInvalidFormat = errors.New("invalid export format")

	// ErrEmptyOrUnparseable means neither whole-document nor line-by-line
	// parsing produced a single record.
	ErrEmptyOrUnparseable = errors.New("export is empty or unparseable")
)

// Kind selects which record type an upload is decoded into.
type Kind int

const (
	KindTicket Kind = iota
	KindUser
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindTicket:
		return "ticket"
	case KindUser:
		return "user"
	case KindField:
		return "field"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// wrapperKey is the property the platform's API wraps record arrays in.
func (k Kind) wrapperKey() string {
	switch k {
	case KindTicket:
		return "tickets"
	case KindUser:
		return "users"
	case KindField:
		return "ticket_fields"
	}
	return ""
}

// genericWrapperKey is accepted for every kind (search and incremental exports).
const genericWrapperKey = "results"

// Mode records which parsing tier produced a batch.
type Mode string

const (
	ModeJSON  Mode = "json"
	ModeJSONL Mode = "jsonl"
	ModeCSV   Mode = "csv"
)

// Record is one decoded source record: *SourceTicket, *SourceUser or
// *SourceFieldRow.
type Record interface {
	SourceID() int64
	record()
}

// ParseError describes a single element or line that could not be decoded.
// Exactly one of Index (array position, 0-based) or Line (1-based) is set.
type ParseError struct {
	Index    int
	Line     int
	SourceID int64
	Err      error
}

func (e *ParseError) Error() string {
	where := ""
	switch {
	case e.Line > 0:
		where = fmt.Sprintf("line %d", e.Line)
	default:
		where = fmt.Sprintf("element %d", e.Index)
	}
	if e.SourceID > 0 {
		where += fmt.Sprintf(" (id %d)", e.SourceID)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Batch is the result of parsing one upload.
type Batch struct {
	Kind    Kind
	Mode    Mode
	Records []Record

	// Rejected holds array elements, CSV rows and JSONL lines with an id
	// that failed to decode. The importer counts each as skipped.
	Rejected []*ParseError

	// Discarded counts JSONL lines dropped silently; DiscardedLines holds
	// their 1-based line numbers for debug logging.
	Discarded      int
	DiscardedLines []int

	// Sideloaded holds users embedded next to a ticket array
	// ({"tickets": [...], "users": [...]}). They only enrich user
	// reconciliation with emails and names.
	Sideloaded []*SourceUser
}

// Tickets returns the ticket records in input order.
func (b *Batch) Tickets() []*SourceTicket {
	out := make([]*SourceTicket, 0, len(b.Records))
	for _, r := range b.Records {
		if t, ok := r.(*SourceTicket); ok {
			out = append(out, t)
		}
	}
	return out
}

// Users returns the user records in input order.
func (b *Batch) Users() []*SourceUser {
	out := make([]*SourceUser, 0, len(b.Records))
	for _, r := range b.Records {
		if u, ok := r.(*SourceUser); ok {
			out = append(out, u)
		}
	}
	return out
}

// Fields returns the field catalog rows in input order.
func (b *Batch) Fields() []*SourceFieldRow {
	out := make([]*SourceFieldRow, 0, len(b.Records))
	for _, r := range b.Records {
		if f, ok := r.(*SourceFieldRow); ok {
			out = append(out, f)
		}
	}
	return out
}
