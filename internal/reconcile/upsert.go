package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/validation"
)

// MapSourceRole maps a source platform role onto a canonical role.
func MapSourceRole(role string) types.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "agent":
		return types.RoleAgent
	case "admin":
		return types.RoleAdmin
	default:
		return types.RoleUser
	}
}

// UpsertOutcome is what UpsertUser did with one source user.
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertCreated
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// UpsertUser merges one source user into the store. An existing user, found
// by email then by synthetic external id, only has its empty fields filled;
// roles and non-empty values are never overwritten. Otherwise a user is
// created.
func UpsertUser(ctx context.Context, store storage.Storage, su *source.SourceUser) (*types.User, UpsertOutcome, error) {
	if su == nil || su.SourceID() <= 0 {
		return nil, UpsertUnchanged, fmt.Errorf("source user has no id")
	}
	email := validation.NormalizeEmail(su.Email)
	externalID := idgen.SyntheticUserExternalID(su.SourceID())
	name := validation.NormalizeName(su.Name)
	timeZone := strings.TrimSpace(su.TimeZone)
	lastSeen := su.LastLoginAt.Ptr()

	existing, err := findUser(ctx, store, email, su.SourceID())
	if err != nil {
		return nil, UpsertUnchanged, err
	}

	if existing != nil {
		updates := make(map[string]interface{})
		if existing.EmailValue() == "" && email != "" {
			updates["email"] = email
		}
		if existing.ExternalID == nil || *existing.ExternalID == "" {
			updates["external_id"] = externalID
		}
		if existing.Name == "" && name != "" {
			updates["name"] = name
		}
		if existing.TimeZone == "" && timeZone != "" {
			updates["time_zone"] = timeZone
		}
		if existing.LastSeenAt == nil && lastSeen != nil {
			updates["last_seen_at"] = *lastSeen
		}
		if len(updates) == 0 {
			return existing, UpsertUnchanged, nil
		}
		if err := store.UpdateUser(ctx, existing.ID, updates); err != nil {
			return nil, UpsertUnchanged, fmt.Errorf("update user %s: %w", existing.ID, err)
		}
		updated, err := store.GetUser(ctx, existing.ID)
		if err != nil {
			return nil, UpsertUnchanged, err
		}
		return updated, UpsertUpdated, nil
	}

	user := &types.User{
		ExternalID: &externalID,
		Role:       MapSourceRole(su.Role),
		Name:       name,
		TimeZone:   timeZone,
		LastSeenAt: lastSeen,
	}
	if email != "" {
		user.Email = &email
	}
	if err := validation.ValidateUser(user); err != nil {
		return nil, UpsertUnchanged, err
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, UpsertUnchanged, fmt.Errorf("create user: %w", err)
	}
	return user, UpsertCreated, nil
}
