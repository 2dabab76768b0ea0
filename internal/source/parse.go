package source

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes an upload of the given kind.
//
// The whole buffer is first parsed as one JSON document: an array of records,
// an object wrapping the array (tickets/users/ticket_fields, or results), or a
// single record object. If that fails the buffer is treated as JSON Lines and
// each line is parsed on its own. A line that carries an id but does not
// decode is rejected like a bad array element; any other undecodable line is
// discarded. A batch without any record is ErrEmptyOrUnparseable.
func Parse(data []byte, kind Kind) (*Batch, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyOrUnparseable
	}

	var doc json.RawMessage
	if err := json.Unmarshal(data, &doc); err == nil {
		batch, err := parseDocument(doc, kind)
		if err != nil {
			return nil, err
		}
		if len(batch.Records) == 0 {
			return nil, emptyBatchError(batch)
		}
		return batch, nil
	}

	batch := parseLines(data, kind)
	if len(batch.Records) == 0 {
		return nil, emptyBatchError(batch)
	}
	return batch, nil
}

func emptyBatchError(b *Batch) error {
	if len(b.Rejected) == 0 {
		return ErrEmptyOrUnparseable
	}
	return fmt.Errorf("%w: all %d records rejected, first: %v", ErrEmptyOrUnparseable, len(b.Rejected), b.Rejected[0])
}

func parseDocument(doc json.RawMessage, kind Kind) (*Batch, error) {
	batch := &Batch{Kind: kind, Mode: ModeJSON}

	switch jsonKind(doc) {
	case "array":
		var elems []json.RawMessage
		if err := json.Unmarshal(doc, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		batch.addElements(elems)
		return batch, nil

	case "object":
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		for _, key := range []string{kind.wrapperKey(), genericWrapperKey} {
			raw, ok := obj[key]
			if !ok || jsonKind(raw) != "array" {
				continue
			}
			var elems []json.RawMessage
			if err := json.Unmarshal(raw, &elems); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, key, err)
			}
			batch.addElements(elems)
			if kind == KindTicket {
				batch.Sideloaded = sideloadedUsers(obj["users"])
			}
			return batch, nil
		}
		if _, ok := obj["id"]; ok {
			rec, err := decodeRecord(doc, kind)
			if err != nil {
				batch.Rejected = append(batch.Rejected, &ParseError{Index: 0, SourceID: peekID(doc), Err: err})
				return batch, nil
			}
			batch.Records = append(batch.Records, rec)
			return batch, nil
		}
		return nil, fmt.Errorf("%w: object has no %q array and no id", ErrInvalidFormat, kind.wrapperKey())

	default:
		return nil, fmt.Errorf("%w: top-level %s", ErrInvalidFormat, jsonKind(doc))
	}
}

func (b *Batch) addElements(elems []json.RawMessage) {
	for i, raw := range elems {
		rec, err := decodeRecord(raw, b.Kind)
		if err != nil {
			b.Rejected = append(b.Rejected, &ParseError{Index: i, SourceID: peekID(raw), Err: err})
			continue
		}
		b.Records = append(b.Records, rec)
	}
}

func parseLines(data []byte, kind Kind) *Batch {
	batch := &Batch{Kind: kind, Mode: ModeJSONL}
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		rec, err := decodeRecord(line, kind)
		if err != nil {
			if id := peekID(line); id > 0 {
				batch.Rejected = append(batch.Rejected, &ParseError{Line: i + 1, SourceID: id, Err: err})
				continue
			}
			batch.Discarded++
			batch.DiscardedLines = append(batch.DiscardedLines, i+1)
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch
}

func decodeRecord(raw json.RawMessage, kind Kind) (Record, error) {
	if k := jsonKind(raw); k != "object" {
		return nil, fmt.Errorf("expected object, got %s", k)
	}

	var rec Record
	var err error
	switch kind {
	case KindTicket:
		var t SourceTicket
		err = json.Unmarshal(raw, &t)
		rec = &t
	case KindUser:
		var u SourceUser
		err = json.Unmarshal(raw, &u)
		rec = &u
	case KindField:
		var f SourceFieldRow
		err = json.Unmarshal(raw, &f)
		rec = &f
	default:
		return nil, fmt.Errorf("unsupported kind %v", kind)
	}
	if err != nil {
		return nil, err
	}
	if rec.SourceID() <= 0 {
		return nil, errMissingID
	}
	return rec, nil
}

// peekID extracts the id of an element that failed to decode, for error
// messages. It returns 0 when there is none.
func peekID(raw json.RawMessage) int64 {
	var probe struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return int64(probe.ID)
}

func sideloadedUsers(raw json.RawMessage) []*SourceUser {
	if jsonKind(raw) != "array" {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	var users []*SourceUser
	for _, e := range elems {
		rec, err := decodeRecord(e, KindUser)
		if err != nil {
			continue
		}
		users = append(users, rec.(*SourceUser))
	}
	return users
}
