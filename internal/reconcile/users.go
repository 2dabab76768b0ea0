package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ticketport/ticketport/internal/idgen"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/validation"
)

// Options tunes user reconciliation.
type Options struct {
	// SubmitterImpliesAgent treats a submitter who is not the ticket's
	// requester as an agent, in addition to assignees.
	SubmitterImpliesAgent bool
	Logger                *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// UserMap resolves source user ids to canonical user ids for one batch.
// Ids with no usable identity resolve to the fallback (the importing admin).
type UserMap struct {
	ids      map[int64]string
	fellBack map[int64]bool
	fallback string
	created  int
	warnings []string
}

// Resolve returns the canonical user for a source id. ok is false when the
// id was not part of the batch or resolved to the fallback.
func (m *UserMap) Resolve(sourceID int64) (string, bool) {
	if m == nil || sourceID <= 0 {
		return "", false
	}
	id, ok := m.ids[sourceID]
	if !ok || m.fellBack[sourceID] {
		return "", false
	}
	return id, true
}

// ResolveOrFallback is Resolve with the fallback user substituted.
func (m *UserMap) ResolveOrFallback(sourceID int64) string {
	if id, ok := m.Resolve(sourceID); ok {
		return id
	}
	return m.Fallback()
}

// Fallback is the user that unresolvable references map to.
func (m *UserMap) Fallback() string {
	if m == nil {
		return ""
	}
	return m.fallback
}

// Created is the number of users created for the batch.
func (m *UserMap) Created() int {
	if m == nil {
		return 0
	}
	return m.created
}

func (m *UserMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Warnings lists users that could not be created and fell back.
func (m *UserMap) Warnings() []string {
	if m == nil {
		return nil
	}
	return m.warnings
}

// identity is what a batch tells us about one source user.
type identity struct {
	sourceID int64
	email    string
	name     string
	agent    bool
}

func (id *identity) merge(ref source.UserRef) {
	if id.email == "" {
		id.email = validation.NormalizeEmail(ref.Email)
	}
	if id.name == "" {
		id.name = validation.NormalizeName(ref.Name)
	}
}

// collectIdentities folds every user reference in tickets into one identity
// per source id. The first non-empty email and name seen for an id win;
// sideloaded user records fill whatever the tickets left empty.
func collectIdentities(tickets []*source.SourceTicket, sideloaded []*source.SourceUser, opts Options) map[int64]*identity {
	ids := make(map[int64]*identity)
	note := func(ref source.UserRef) *identity {
		if ref.ID <= 0 {
			return nil
		}
		id, ok := ids[ref.ID]
		if !ok {
			id = &identity{sourceID: ref.ID}
			ids[ref.ID] = id
		}
		id.merge(ref)
		return id
	}

	for _, t := range tickets {
		requester := t.RequesterRef()
		note(requester)
		if a := note(t.AssigneeRef()); a != nil {
			a.agent = true
		}
		submitter := t.SubmitterRef()
		if s := note(submitter); s != nil && opts.SubmitterImpliesAgent && submitter.ID != requester.ID {
			s.agent = true
		}
		// A ticket with a malformed comment is rejected later; its authors
		// are simply not collected.
		comments, err := t.DecodeComments()
		if err != nil {
			continue
		}
		for _, c := range comments {
			note(c.AuthorRef())
		}
	}

	for _, u := range sideloaded {
		id, ok := ids[u.SourceID()]
		if !ok {
			continue
		}
		id.merge(source.UserRef{ID: u.SourceID(), Email: u.Email, Name: u.Name})
		if r := MapSourceRole(u.Role); r == types.RoleAgent || r == types.RoleAdmin {
			id.agent = true
		}
	}
	return ids
}

// ReconcileUsers resolves every user referenced by tickets. For each source
// id, in ascending order: an existing user with the same email is reused,
// else one carrying the synthetic external id; else a user is created when an
// email is known; else the id maps to admin. Creation failures fall back to
// admin with a warning. Lookup failures abort reconciliation.
func ReconcileUsers(ctx context.Context, store storage.Storage, tickets []*source.SourceTicket, sideloaded []*source.SourceUser, admin *types.User, opts Options) (*UserMap, error) {
	if admin == nil || admin.ID == "" {
		return nil, fmt.Errorf("reconcile users: no fallback administrator")
	}
	log := opts.logger()

	idents := collectIdentities(tickets, sideloaded, opts)
	order := make([]int64, 0, len(idents))
	for id := range idents {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	m := &UserMap{
		ids:      make(map[int64]string, len(order)),
		fellBack: make(map[int64]bool),
		fallback: admin.ID,
	}
	for _, sourceID := range order {
		ident := idents[sourceID]
		user, err := findUser(ctx, store, ident.email, sourceID)
		if err != nil {
			return nil, fmt.Errorf("reconcile user %d: %w", sourceID, err)
		}
		if user != nil {
			m.ids[sourceID] = user.ID
			continue
		}

		if ident.email == "" {
			log.Debug("source user has no email, mapping to admin", "source_user", sourceID)
			m.ids[sourceID] = admin.ID
			m.fellBack[sourceID] = true
			continue
		}

		created, err := createReferencedUser(ctx, store, ident)
		if err != nil {
			msg := fmt.Sprintf("user %d (%s): %v", sourceID, ident.email, err)
			log.Warn("failed to create source user, mapping to admin", "source_user", sourceID, "error", err)
			m.warnings = append(m.warnings, msg)
			m.ids[sourceID] = admin.ID
			m.fellBack[sourceID] = true
			continue
		}
		m.ids[sourceID] = created.ID
		m.created++
	}
	return m, nil
}

// findUser looks a source user up by email, then by synthetic external id.
// It returns nil, nil when neither matches.
func findUser(ctx context.Context, store storage.Storage, email string, sourceID int64) (*types.User, error) {
	if email != "" {
		u, err := store.GetUserByEmail(ctx, email)
		if err == nil {
			return u, nil
		}
		if !storage.IsNotFound(err) {
			return nil, err
		}
	}
	if sourceID > 0 {
		u, err := store.GetUserByExternalID(ctx, idgen.SyntheticUserExternalID(sourceID))
		if err == nil {
			return u, nil
		}
		if !storage.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

func createReferencedUser(ctx context.Context, store storage.Storage, ident *identity) (*types.User, error) {
	role := types.RoleUser
	if ident.agent {
		role = types.RoleAgent
	}
	email := ident.email
	externalID := idgen.SyntheticUserExternalID(ident.sourceID)
	user := &types.User{
		Email:      &email,
		ExternalID: &externalID,
		Role:       role,
		Name:       ident.name,
	}
	if err := validation.ValidateUser(user); err != nil {
		return nil, err
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
