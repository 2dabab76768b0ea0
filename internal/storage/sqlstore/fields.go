package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

func (s *Store) CreateFieldDefinition(ctx context.Context, field *types.FieldDefinition) error {
	if field.ID == "" {
		field.ID = idgen.NewID("fld")
	}
	if field.CreatedAt.IsZero() {
		field.CreatedAt = s.now()
	}
	if field.UpdatedAt.IsZero() {
		field.UpdatedAt = field.CreatedAt
	}

	_, err := s.execContext(ctx, `
		INSERT INTO field_definitions (`+fieldColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, field.ID, nullInt64(field.SourceFieldID), field.Label, string(field.FieldType), field.Required,
		field.Description, formatTime(field.CreatedAt), formatTime(field.UpdatedAt))
	return s.classify(fmt.Sprintf("create field %s", field.ID), err)
}

func (s *Store) getFieldWhere(ctx context.Context, op, where string, arg interface{}) (*types.FieldDefinition, error) {
	var field *types.FieldDefinition
	err := s.queryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		field, scanErr = scanField(row)
		return scanErr
	}, `SELECT `+fieldColumns+` FROM field_definitions WHERE `+where, arg)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	return field, nil
}

func (s *Store) GetFieldDefinition(ctx context.Context, id string) (*types.FieldDefinition, error) {
	return s.getFieldWhere(ctx, fmt.Sprintf("get field %s", id), "id = ?", id)
}

func (s *Store) GetFieldBySourceID(ctx context.Context, sourceFieldID int64) (*types.FieldDefinition, error) {
	return s.getFieldWhere(ctx, fmt.Sprintf("get field by source id %d", sourceFieldID), "source_field_id = ?", sourceFieldID)
}

// GetFieldByLabel returns the oldest definition with the given label.
func (s *Store) GetFieldByLabel(ctx context.Context, label string) (*types.FieldDefinition, error) {
	return s.getFieldWhere(ctx, fmt.Sprintf("get field by label %q", label),
		"label = ? ORDER BY created_at, id LIMIT 1", label)
}

func (s *Store) UpdateFieldDefinition(ctx context.Context, id string, updates map[string]interface{}) error {
	if _, err := storage.ValidateUpdateKeys(updates, storage.FieldUpdateKeys); err != nil {
		return err
	}
	op := fmt.Sprintf("update field %s", id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		field, err := scanField(tx.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM field_definitions WHERE id = ?`, id))
		if err != nil {
			return wrapDBError(op, err)
		}
		if err := storage.ApplyFieldUpdates(field, updates); err != nil {
			return err
		}
		field.UpdatedAt = s.now()

		_, err = tx.ExecContext(ctx, `
			UPDATE field_definitions
			SET source_field_id = ?, label = ?, field_type = ?, required = ?, description = ?, updated_at = ?
			WHERE id = ?
		`, nullInt64(field.SourceFieldID), field.Label, string(field.FieldType), field.Required,
			field.Description, formatTime(field.UpdatedAt), id)
		return s.classify(op, err)
	})
}
