package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/ticketport/ticketport/internal/types"
)

// ValidateUpdateKeys rejects keys outside allowed. It returns the keys sorted
// so SQL implementations build deterministic statements.
func ValidateUpdateKeys(updates map[string]interface{}, allowed map[string]bool) ([]string, error) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		if !allowed[k] {
			return nil, fmt.Errorf("invalid field for update: %s", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ApplyUserUpdates writes updates onto u in place.
func ApplyUserUpdates(u *types.User, updates map[string]interface{}) error {
	keys, err := ValidateUpdateKeys(updates, UserUpdateKeys)
	if err != nil {
		return err
	}
	for _, k := range keys {
		val := updates[k]
		switch k {
		case "email":
			u.Email = StringPtr(val)
		case "external_id":
			u.ExternalID = StringPtr(val)
		case "role":
			u.Role = types.Role(fmt.Sprint(val))
		case "name":
			u.Name = fmt.Sprint(val)
		case "time_zone":
			u.TimeZone = fmt.Sprint(val)
		case "last_seen_at":
			u.LastSeenAt = TimePtr(val)
		}
	}
	return nil
}

// ApplyFieldUpdates writes updates onto f in place.
func ApplyFieldUpdates(f *types.FieldDefinition, updates map[string]interface{}) error {
	keys, err := ValidateUpdateKeys(updates, FieldUpdateKeys)
	if err != nil {
		return err
	}
	for _, k := range keys {
		val := updates[k]
		switch k {
		case "source_field_id":
			f.SourceFieldID = Int64Ptr(val)
		case "label":
			f.Label = fmt.Sprint(val)
		case "field_type":
			f.FieldType = types.FieldType(fmt.Sprint(val))
		case "required":
			b, _ := val.(bool)
			f.Required = b
		case "description":
			f.Description = fmt.Sprint(val)
		}
	}
	return nil
}

// StringPtr normalizes an update value (string, *string or nil) to *string.
func StringPtr(val interface{}) *string {
	switch v := val.(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		s := *v
		return &s
	case string:
		return &v
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

// Int64Ptr normalizes an update value (int64, int, *int64 or nil) to *int64.
func Int64Ptr(val interface{}) *int64 {
	switch v := val.(type) {
	case *int64:
		if v == nil {
			return nil
		}
		n := *v
		return &n
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	default:
		return nil
	}
}

// TimePtr normalizes an update value (time.Time, *time.Time or nil) to *time.Time.
func TimePtr(val interface{}) *time.Time {
	switch v := val.(type) {
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v.UTC()
		return &t
	default:
		return nil
	}
}
