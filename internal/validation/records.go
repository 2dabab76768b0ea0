package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/ticketport/ticketport/internal/types"
)

// ValidateTicket checks a ticket before it is written.
func ValidateTicket(t *types.Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(t.Subject); n > MaxSubjectLength {
		return fmt.Errorf("subject must be %d characters or less (got %d)", MaxSubjectLength, n)
	}
	if t.SourceTicketNumber != nil && *t.SourceTicketNumber <= 0 {
		return fmt.Errorf("invalid source ticket number %d", *t.SourceTicketNumber)
	}
	return nil
}

// ValidateUser checks a user before it is written. The email, when present,
// must already be normalized.
func ValidateUser(u *types.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Email != nil && *u.Email != "" && NormalizeEmail(*u.Email) != *u.Email {
		return fmt.Errorf("email %q is not normalized", *u.Email)
	}
	return nil
}
