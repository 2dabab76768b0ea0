package validation

import (
	"strings"
	"testing"

	"github.com/ticketport/ticketport/internal/types"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "lowercases", email: "Alice@Example.COM", want: "alice@example.com"},
		{name: "trims", email: "  bob@example.com\n", want: "bob@example.com"},
		{name: "unicode lower", email: "STRASSE@example.de", want: "strasse@example.de"},
		{name: "sharp s kept", email: "Straße@x.com", want: "straße@x.com"},
		{name: "accented upper", email: "ÉLODIE@Example.fr", want: "élodie@example.fr"},
		{name: "empty", email: "", want: ""},
		{name: "no at sign", email: "n/a", want: ""},
		{name: "no domain", email: "carol@", want: ""},
		{name: "no local part", email: "@example.com", want: ""},
		{name: "inner space", email: "dan smith@example.com", want: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeEmail(tc.email); got != tc.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.email, got, tc.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	// "e" followed by a combining acute accent composes to a single rune.
	got := NormalizeName("Jose\u0301  Garci\u0301a ")
	if got != "Jos\u00e9 Garc\u00eda" {
		t.Errorf("NormalizeName() = %q", got)
	}
}

func TestNormalizeSubject(t *testing.T) {
	t.Parallel()

	if got := NormalizeSubject("   "); got != EmptySubject {
		t.Errorf("blank subject = %q, want %q", got, EmptySubject)
	}
	if got := NormalizeSubject(" Printer on fire "); got != "Printer on fire" {
		t.Errorf("NormalizeSubject() = %q", got)
	}
	long := strings.Repeat("é", MaxSubjectLength+20)
	got := NormalizeSubject(long)
	if n := len([]rune(got)); n != MaxSubjectLength {
		t.Errorf("truncated subject has %d runes, want %d", n, MaxSubjectLength)
	}
}

func TestValidateTicket(t *testing.T) {
	t.Parallel()

	valid := func() *types.Ticket {
		n := int64(12)
		return &types.Ticket{
			Subject:            "Refund request",
			Status:             types.StatusOpen,
			Priority:           types.PriorityNormal,
			RequesterID:        "usr-1",
			SourceTicketNumber: &n,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*types.Ticket)
		wantErr string
	}{
		{name: "valid", mutate: func(*types.Ticket) {}},
		{name: "missing subject", mutate: func(tk *types.Ticket) { tk.Subject = "" }, wantErr: "subject is required"},
		{name: "long subject", mutate: func(tk *types.Ticket) { tk.Subject = strings.Repeat("x", 501) }, wantErr: "500 characters"},
		{name: "bad status", mutate: func(tk *types.Ticket) { tk.Status = "open" }, wantErr: "invalid status"},
		{name: "bad priority", mutate: func(tk *types.Ticket) { tk.Priority = "P1" }, wantErr: "invalid priority"},
		{name: "no requester", mutate: func(tk *types.Ticket) { tk.RequesterID = "" }, wantErr: "requester"},
		{name: "zero source number", mutate: func(tk *types.Ticket) { zero := int64(0); tk.SourceTicketNumber = &zero }, wantErr: "source ticket number"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tk := valid()
			tc.mutate(tk)
			err := ValidateTicket(tk)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ValidateTicket() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateUser(t *testing.T) {
	t.Parallel()

	email := "agent@example.com"
	upper := "Agent@Example.com"
	ext := "source-user-7"

	if err := ValidateUser(&types.User{Email: &email, Role: types.RoleAgent}); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}
	if err := ValidateUser(&types.User{ExternalID: &ext, Role: types.RoleUser}); err != nil {
		t.Errorf("user with only external id rejected: %v", err)
	}
	if err := ValidateUser(&types.User{Role: types.RoleUser}); err == nil {
		t.Error("user without email or external id accepted")
	}
	if err := ValidateUser(&types.User{Email: &upper, Role: types.RoleUser}); err == nil {
		t.Error("unnormalized email accepted")
	}
	if err := ValidateUser(&types.User{Email: &email, Role: "end-user"}); err == nil {
		t.Error("unknown role accepted")
	}
}
