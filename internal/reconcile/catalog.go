package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// defaultFieldTypes maps normalized source field types to canonical ones.
// Unlisted types become text.
var defaultFieldTypes = map[string]types.FieldType{
	"checkbox":   types.FieldCheckbox,
	"numeric":    types.FieldText,
	"multi-line": types.FieldTextarea,
	"multiline":  types.FieldTextarea,
	"drop-down":  types.FieldSelect,
	"dropdown":   types.FieldSelect,
}

// FieldTypeTable maps source field types onto canonical field types.
type FieldTypeTable struct {
	byName map[string]types.FieldType
}

// NewFieldTypeTable returns the built-in table with overrides applied.
// Override values must name a canonical field type.
func NewFieldTypeTable(overrides map[string]string) (*FieldTypeTable, error) {
	t := &FieldTypeTable{byName: make(map[string]types.FieldType, len(defaultFieldTypes)+len(overrides))}
	for k, v := range defaultFieldTypes {
		t.byName[k] = v
	}
	for k, v := range overrides {
		ft := types.FieldType(strings.ToLower(strings.TrimSpace(v)))
		if !ft.IsValid() {
			return nil, fmt.Errorf("invalid field type %q for source type %q", v, k)
		}
		t.byName[normalizeFieldType(k)] = ft
	}
	return t, nil
}

// DefaultFieldTypeTable returns the built-in table.
func DefaultFieldTypeTable() *FieldTypeTable {
	t, _ := NewFieldTypeTable(nil)
	return t
}

// Map returns the canonical type for a source type. Matching ignores case and
// treats "_" and " " like "-".
func (t *FieldTypeTable) Map(sourceType string) types.FieldType {
	if t == nil {
		t = DefaultFieldTypeTable()
	}
	if ft, ok := t.byName[normalizeFieldType(sourceType)]; ok {
		return ft
	}
	return types.FieldText
}

func normalizeFieldType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

// CatalogOutcome is what applying one catalog row did.
type CatalogOutcome int

const (
	CatalogFailed CatalogOutcome = iota
	CatalogCreated
	CatalogUpdated
)

func (o CatalogOutcome) String() string {
	switch o {
	case CatalogCreated:
		return "created"
	case CatalogUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// CatalogResult reports one applied catalog row.
type CatalogResult struct {
	SourceFieldID int64
	FieldID       string
	Outcome       CatalogOutcome
	Err           error
}

// ApplyCatalog upserts a definition per catalog row. A row updates the
// definition bound to its source id, else promotes the placeholder carrying
// its synthesized label (keeping the placeholder's id), else creates a new
// definition. Row failures are reported, not returned.
func ApplyCatalog(ctx context.Context, store storage.Storage, rows []*source.SourceFieldRow, table *FieldTypeTable) []CatalogResult {
	results := make([]CatalogResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, applyCatalogRow(ctx, store, row, table))
	}
	return results
}

func applyCatalogRow(ctx context.Context, store storage.Storage, row *source.SourceFieldRow, table *FieldTypeTable) CatalogResult {
	id := row.SourceID()
	res := CatalogResult{SourceFieldID: id}

	label := row.Label()
	if label == "" {
		label = types.PlaceholderLabel(id)
	}
	fieldType := table.Map(row.Type)

	updates := map[string]interface{}{
		"source_field_id": id,
		"label":           label,
		"field_type":      fieldType,
		"required":        row.IsRequired(),
	}
	if desc := strings.TrimSpace(row.Description); desc != "" {
		updates["description"] = desc
	}

	existing, err := store.GetFieldBySourceID(ctx, id)
	if err != nil && !storage.IsNotFound(err) {
		res.Err = err
		return res
	}
	if existing == nil {
		existing, err = findPlaceholder(ctx, store, id)
		if err != nil && !storage.IsNotFound(err) {
			res.Err = err
			return res
		}
	}

	if existing != nil {
		if err := store.UpdateFieldDefinition(ctx, existing.ID, updates); err != nil {
			res.Err = err
			return res
		}
		res.FieldID = existing.ID
		res.Outcome = CatalogUpdated
		return res
	}

	def := &types.FieldDefinition{
		SourceFieldID: &id,
		Label:         label,
		FieldType:     fieldType,
		Required:      row.IsRequired(),
		Description:   strings.TrimSpace(row.Description),
	}
	if err := store.CreateFieldDefinition(ctx, def); err != nil {
		res.Err = err
		return res
	}
	res.FieldID = def.ID
	res.Outcome = CatalogCreated
	return res
}
