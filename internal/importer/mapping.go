package importer

import (
	"fmt"
	"strings"

	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/reconcile"
	"github.com/ticketport/ticketport/internal/types"
)

var defaultStatuses = map[string]types.Status{
	"new":     types.StatusNew,
	"open":    types.StatusOpen,
	"pending": types.StatusPending,
	"hold":    types.StatusOnHold,
	"solved":  types.StatusSolved,
	"closed":  types.StatusClosed,
}

var defaultPriorities = map[string]types.Priority{
	"low":    types.PriorityLow,
	"normal": types.PriorityNormal,
	"high":   types.PriorityHigh,
	"urgent": types.PriorityUrgent,
}

// Mappings translates source status, priority and field type values into
// canonical ones.
type Mappings struct {
	statuses   map[string]types.Status
	priorities map[string]types.Priority
	fieldTypes *reconcile.FieldTypeTable
}

// DefaultMappings returns the built-in tables.
func DefaultMappings() *Mappings {
	m, _ := NewMappings(nil)
	return m
}

// NewMappings layers overrides on top of the built-in tables. Every override
// must name a canonical value.
func NewMappings(overrides *config.MappingOverrides) (*Mappings, error) {
	m := &Mappings{
		statuses:   make(map[string]types.Status, len(defaultStatuses)),
		priorities: make(map[string]types.Priority, len(defaultPriorities)),
	}
	for k, v := range defaultStatuses {
		m.statuses[k] = v
	}
	for k, v := range defaultPriorities {
		m.priorities[k] = v
	}
	if overrides == nil {
		overrides = &config.MappingOverrides{}
	}

	for k, v := range overrides.Status {
		s := types.Status(strings.ToUpper(v))
		if !s.IsValid() {
			return nil, fmt.Errorf("status mapping %q: invalid status %q", k, v)
		}
		m.statuses[strings.ToLower(k)] = s
	}
	for k, v := range overrides.Priority {
		p := types.Priority(strings.ToUpper(v))
		if !p.IsValid() {
			return nil, fmt.Errorf("priority mapping %q: invalid priority %q", k, v)
		}
		m.priorities[strings.ToLower(k)] = p
	}

	ft, err := reconcile.NewFieldTypeTable(overrides.FieldTypes)
	if err != nil {
		return nil, fmt.Errorf("field type mapping: %w", err)
	}
	m.fieldTypes = ft
	return m, nil
}

// Status maps a source status; unknown values become NEW.
func (m *Mappings) Status(s string) types.Status {
	if st, ok := m.statuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return types.StatusNew
}

// Priority maps a source priority; unknown or empty values become NORMAL.
func (m *Mappings) Priority(p string) types.Priority {
	if pr, ok := m.priorities[strings.ToLower(strings.TrimSpace(p))]; ok {
		return pr
	}
	return types.PriorityNormal
}

// FieldTypes is the field type table used for catalog imports.
func (m *Mappings) FieldTypes() *reconcile.FieldTypeTable {
	return m.fieldTypes
}
