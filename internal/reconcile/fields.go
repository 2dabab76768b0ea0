// Package reconcile maps the users and custom fields referenced by a source
// export onto canonical records, creating whatever is missing.
//
// Reconcilers run before any ticket is written and return read-only maps
// (FieldMap, UserMap) that the ticket importer consults.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// FieldMap resolves source custom field ids to field definition ids for one
// batch.
type FieldMap struct {
	ids     map[int64]string
	created int
}

// Lookup returns the definition id for a source field id.
func (m *FieldMap) Lookup(sourceFieldID int64) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.ids[sourceFieldID]
	return id, ok
}

// Created is the number of placeholder definitions created for the batch.
func (m *FieldMap) Created() int {
	if m == nil {
		return 0
	}
	return m.created
}

func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// SourceFieldIDs returns the distinct custom field ids referenced by tickets,
// ascending.
func SourceFieldIDs(tickets []*source.SourceTicket) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range tickets {
		for _, f := range t.FieldValues() {
			id := int64(f.ID)
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReconcileFields makes sure every custom field referenced by tickets has a
// definition. Existing definitions are matched by source id, then by
// placeholder label; anything else gets a placeholder definition.
func ReconcileFields(ctx context.Context, store storage.Storage, tickets []*source.SourceTicket) (*FieldMap, error) {
	ids := SourceFieldIDs(tickets)
	m := &FieldMap{ids: make(map[int64]string, len(ids))}
	for _, id := range ids {
		def, created, err := resolveField(ctx, store, id)
		if err != nil {
			return nil, fmt.Errorf("reconcile field %d: %w", id, err)
		}
		m.ids[id] = def.ID
		if created {
			m.created++
		}
	}
	return m, nil
}

func resolveField(ctx context.Context, store storage.Storage, id int64) (*types.FieldDefinition, bool, error) {
	def, err := store.GetFieldBySourceID(ctx, id)
	if err == nil {
		return def, false, nil
	}
	if !storage.IsNotFound(err) {
		return nil, false, err
	}

	def, err = findPlaceholder(ctx, store, id)
	if err == nil {
		return def, false, nil
	}
	if !storage.IsNotFound(err) {
		return nil, false, err
	}

	sourceID := id
	placeholder := &types.FieldDefinition{
		SourceFieldID: &sourceID,
		Label:         types.PlaceholderLabel(id),
		FieldType:     types.FieldText,
	}
	if err := store.CreateFieldDefinition(ctx, placeholder); err != nil {
		// Another upload created it between our lookup and insert.
		if storage.IsConflict(err) {
			if def, lookupErr := store.GetFieldBySourceID(ctx, id); lookupErr == nil {
				return def, false, nil
			}
		}
		return nil, false, err
	}
	return placeholder, true, nil
}

// findPlaceholder returns the definition labelled PlaceholderLabel(id) unless
// it is already bound to a different source field.
func findPlaceholder(ctx context.Context, store storage.Storage, id int64) (*types.FieldDefinition, error) {
	def, err := store.GetFieldByLabel(ctx, types.PlaceholderLabel(id))
	if err != nil {
		return nil, err
	}
	if def.SourceFieldID != nil && *def.SourceFieldID != id {
		return nil, fmt.Errorf("placeholder %s belongs to field %d: %w", def.ID, *def.SourceFieldID, storage.ErrNotFound)
	}
	return def, nil
}
