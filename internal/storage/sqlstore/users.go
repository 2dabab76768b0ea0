package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// CreateUser inserts a user, assigning an id and timestamps when unset.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	if user.ID == "" {
		user.ID = idgen.NewID("usr")
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	_, err := s.execContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, nullString(user.Email), nullString(user.ExternalID), string(user.Role), user.Name,
		user.TimeZone, formatTimePtr(user.LastSeenAt), formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	return s.classify(fmt.Sprintf("create user %s", user.ID), err)
}

func (s *Store) getUserWhere(ctx context.Context, op, where string, arg interface{}) (*types.User, error) {
	var user *types.User
	err := s.queryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		user, scanErr = scanUser(row)
		return scanErr
	}, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	return s.getUserWhere(ctx, fmt.Sprintf("get user %s", id), "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	if email == "" {
		return nil, fmt.Errorf("get user by email: %w", storage.ErrNotFound)
	}
	return s.getUserWhere(ctx, fmt.Sprintf("get user by email %s", email), "email = ?", email)
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*types.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("get user by external id: %w", storage.ErrNotFound)
	}
	return s.getUserWhere(ctx, fmt.Sprintf("get user by external id %s", externalID), "external_id = ?", externalID)
}

// UpdateUser applies updates to the stored row in one transaction.
func (s *Store) UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error {
	if _, err := storage.ValidateUpdateKeys(updates, storage.UserUpdateKeys); err != nil {
		return err
	}
	op := fmt.Sprintf("update user %s", id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
		if err != nil {
			return wrapDBError(op, err)
		}
		if err := storage.ApplyUserUpdates(user, updates); err != nil {
			return err
		}
		user.UpdatedAt = s.now()

		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET email = ?, external_id = ?, role = ?, name = ?, time_zone = ?, last_seen_at = ?, updated_at = ?
			WHERE id = ?
		`, nullString(user.Email), nullString(user.ExternalID), string(user.Role), user.Name, user.TimeZone,
			formatTimePtr(user.LastSeenAt), formatTime(user.UpdatedAt), id)
		return s.classify(op, err)
	})
}
