package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/validation"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("administrator role required")
)

// Authenticator maps bearer tokens to administrator accounts.
type Authenticator struct {
	store  storage.Storage
	tokens []tokenEntry
}

type tokenEntry struct {
	token []byte
	email string
}

// NewAuthenticator builds an Authenticator from token → admin email pairs,
// as configured under server.admin-tokens.
func NewAuthenticator(store storage.Storage, tokens map[string]string) *Authenticator {
	a := &Authenticator{store: store}
	for token, email := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		a.tokens = append(a.tokens, tokenEntry{token: []byte(token), email: validation.NormalizeEmail(email)})
	}
	return a
}

// Authenticate returns the administrator the request's bearer token belongs
// to. Missing or unknown tokens yield errUnauthorized; a token whose user is
// not an administrator yields errForbidden.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*types.User, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errUnauthorized
	}
	email := a.lookup([]byte(strings.TrimSpace(token)))
	if email == "" {
		return nil, errUnauthorized
	}

	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errUnauthorized
		}
		return nil, err
	}
	if user.Role != types.RoleAdmin {
		return nil, errForbidden
	}
	return user, nil
}

// lookup compares against every configured token so timing does not leak
// which prefix matched.
func (a *Authenticator) lookup(token []byte) string {
	var email string
	for _, e := range a.tokens {
		if subtle.ConstantTimeCompare(token, e.token) == 1 {
			email = e.email
		}
	}
	return email
}

// requireAdmin wraps next with bearer authentication.
func (h *Handler) requireAdmin(next func(w http.ResponseWriter, r *http.Request, admin *types.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.auth.Authenticate(r.Context(), r)
		switch {
		case errors.Is(err, errUnauthorized):
			w.Header().Set("WWW-Authenticate", `Bearer realm="ticketport"`)
			WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		case errors.Is(err, errForbidden):
			WriteJSONError(w, http.StatusForbidden, "forbidden", err.Error())
			return
		case err != nil:
			h.log.Error("authentication failed", "error", err)
			WriteJSONError(w, http.StatusInternalServerError, "authentication failed", "")
			return
		}
		next(w, r, admin)
	}
}
