package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ticketport/ticketport/internal/timeparsing"
)

var errMissingID = errors.New("missing or invalid id")

// ID is a source-system identifier. Exports carry ids as JSON numbers or
// numeric strings; null and "" decode to 0, which means absent.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*id = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return fmt.Errorf("invalid id %s", b)
		}
		n = int64(f)
	}
	*id = ID(n)
	return nil
}

// Timestamp is a lenient time value. Strings in any layout known to
// timeparsing and epoch numbers decode; unrecognized strings decode to the
// zero time and are treated as missing.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if p := timeparsing.ParseOptional(s); p != nil {
			t.Time = *p
		} else {
			t.Time = time.Time{}
		}
		return nil
	case '{', '[', 't', 'f':
		return fmt.Errorf("invalid timestamp %s", b)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s", b)
	}
	t.Time = timeparsing.FromEpoch(int64(f))
	return nil
}

// Ptr returns nil for a missing timestamp.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// SourceRef is an embedded user object ({id, email, name}).
type SourceRef struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserRef is a resolved reference to a source user: the id plus whatever
// identity details travelled with it.
type UserRef struct {
	ID    int64
	Email string
	Name  string
}

// refOf prefers the embedded object's id over the bare id field.
func refOf(embedded *SourceRef, bare ID) UserRef {
	if embedded != nil && embedded.ID > 0 {
		return UserRef{ID: int64(embedded.ID), Email: embedded.Email, Name: embedded.Name}
	}
	return UserRef{ID: int64(bare)}
}

// FieldValue is one custom field entry on a ticket.
type FieldValue struct {
	ID    ID              `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Flatten renders the value as a string. Empty strings, null, false and empty
// collections report ok=false.
func (f FieldValue) Flatten() (string, bool) {
	if len(bytes.TrimSpace(f.Value)) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(f.Value))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	s := flattenValue(v)
	return s, s != ""
}

func flattenValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return ""
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flattenValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		if len(val) == 0 {
			return ""
		}
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// SourceTicket is a ticket as exported by the source platform.
type SourceTicket struct {
	ID          ID     `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`

	RequesterID ID         `json:"requester_id"`
	AssigneeID  ID         `json:"assignee_id"`
	SubmitterID ID         `json:"submitter_id"`
	Requester   *SourceRef `json:"requester"`
	Assignee    *SourceRef `json:"assignee"`
	Submitter   *SourceRef `json:"submitter"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
	SolvedAt  Timestamp `json:"solved_at"`

	Tags []string `json:"tags"`

	// Comments are kept raw and decoded one by one at import time so that a
	// single malformed comment fails only its ticket.
	Comments []json.RawMessage `json:"comments"`

	CustomFields []FieldValue `json:"custom_fields"`
	Fields       []FieldValue `json:"fields"`
}

func (t *SourceTicket) SourceID() int64 { return int64(t.ID) }
func (t *SourceTicket) record()         {}

// RequesterRef returns the requester, preferring the embedded object.
func (t *SourceTicket) RequesterRef() UserRef { return refOf(t.Requester, t.RequesterID) }

// AssigneeRef returns the assignee, preferring the embedded object.
func (t *SourceTicket) AssigneeRef() UserRef { return refOf(t.Assignee, t.AssigneeID) }

// SubmitterRef returns the submitter, preferring the embedded object.
func (t *SourceTicket) SubmitterRef() UserRef { return refOf(t.Submitter, t.SubmitterID) }

// DecodeComments decodes every embedded comment, failing on the first one
// that is not a well-formed comment object.
func (t *SourceTicket) DecodeComments() ([]*SourceComment, error) {
	out := make([]*SourceComment, 0, len(t.Comments))
	for i, raw := range t.Comments {
		c, err := decodeComment(raw)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeComment(raw json.RawMessage) (*SourceComment, error) {
	if kind := jsonKind(raw); kind != "object" {
		return nil, fmt.Errorf("expected object, got %s", kind)
	}
	var c SourceComment
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FieldValues merges custom_fields and fields, dropping entries without an
// id. When both carry the same id, custom_fields wins. Output is sorted by id.
func (t *SourceTicket) FieldValues() []FieldValue {
	seen := make(map[ID]bool, len(t.CustomFields)+len(t.Fields))
	out := make([]FieldValue, 0, len(t.CustomFields)+len(t.Fields))
	for _, list := range [][]FieldValue{t.CustomFields, t.Fields} {
		for _, f := range list {
			if f.ID <= 0 || seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SourceComment is one entry of a ticket's comment thread.
type SourceComment struct {
	ID        ID         `json:"id"`
	AuthorID  ID         `json:"author_id"`
	Author    *SourceRef `json:"author"`
	Body      string     `json:"body"`
	HTMLBody  string     `json:"html_body"`
	PlainBody string     `json:"plain_body"`
	Public    *bool      `json:"public"`
	CreatedAt Timestamp  `json:"created_at"`
}

// AuthorRef returns the author, preferring the embedded object.
func (c *SourceComment) AuthorRef() UserRef { return refOf(c.Author, c.AuthorID) }

// Text picks plain_body, then body, then html_body.
func (c *SourceComment) Text() string {
	for _, s := range []string{c.PlainBody, c.Body, c.HTMLBody} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Internal reports whether the comment was private. Only an explicit
// public=false makes a comment internal.
func (c *SourceComment) Internal() bool {
	return c.Public != nil && !*c.Public
}

// SourceUser is a user from the platform's user export.
type SourceUser struct {
	ID          ID        `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	TimeZone    string    `json:"time_zone"`
	LastLoginAt Timestamp `json:"last_login_at"`
	Phone       string    `json:"phone"`
	Active      *bool     `json:"active"`
}

func (u *SourceUser) SourceID() int64 { return int64(u.ID) }
func (u *SourceUser) record()         {}

// SourceFieldRow is one custom field definition from the field catalog.
type SourceFieldRow struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	RawTitle    string `json:"raw_title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
	Required    *bool  `json:"required"`
}

func (f *SourceFieldRow) SourceID() int64 { return int64(f.ID) }
func (f *SourceFieldRow) record()         {}

// Label returns the display name of the field.
func (f *SourceFieldRow) Label() string {
	if s := strings.TrimSpace(f.Title); s != "" {
		return s
	}
	return strings.TrimSpace(f.RawTitle)
}

// IsRequired reports the catalog's required flag; absent means optional.
func (f *SourceFieldRow) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// jsonKind names the JSON type of raw by its first significant byte.
func jsonKind(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
