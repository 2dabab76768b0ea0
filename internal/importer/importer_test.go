package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/storage/memory"
	"github.com/ticketport/ticketport/internal/testutil/teststore"
	"github.com/ticketport/ticketport/internal/types"
)

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func newTestImporter(t *testing.T) (*Importer, storage.Storage, *types.User) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	admin := teststore.CreateAdmin(t, store)
	im := New(store, Options{Now: func() time.Time { return fixedNow }})
	return im, store, admin
}

const threeTickets = `[
	{"id": 101, "subject": "Printer on fire", "status": "open", "priority": "urgent",
	 "requester": {"id": 1, "email": "alice@example.com", "name": "Alice"},
	 "assignee": {"id": 2, "email": "bob@example.com", "name": "Bob"},
	 "created_at": "2024-05-01T10:00:00Z",
	 "comments": [
		{"author_id": 1, "plain_body": "It is on fire", "public": true, "created_at": "2024-05-01T10:00:00Z"},
		{"author_id": 2, "html_body": "<p>Extinguisher deployed</p>", "public": false}
	 ],
	 "custom_fields": [{"id": 77, "value": "gold"}, {"id": 78, "value": null}]},
	{"id": 102, "subject": "", "status": "solved", "requester_id": 3,
	 "updated_at": "2024-05-03T08:00:00Z", "tags": ["billing", " billing ", ""]},
	{"id": 103, "subject": "Hold please", "status": "hold", "priority": "bogus", "requester_id": 1,
	 "fields": [{"id": 79, "value": ["a", "b"]}, {"id": 80, "value": false}]}
]`

func TestImportTickets(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	report, err := im.ImportTickets(ctx, admin.ID, []byte(threeTickets), "json")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 2, report.UsersCreated, "alice and bob; user 3 has no email")
	assert.Equal(t, 4, report.CustomFieldsCreated)
	assert.Equal(t, 2, report.FormResponsesCreated)
	assert.Empty(t, report.Errors)

	first, err := store.GetTicketBySourceNumber(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(101), first.Number)
	assert.Equal(t, types.StatusOpen, first.Status)
	assert.Equal(t, types.PriorityUrgent, first.Priority)
	assert.True(t, first.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Nil(t, first.SolvedAt)

	alice, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	bob, err := store.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, first.RequesterID)
	require.NotNil(t, first.AssigneeID)
	assert.Equal(t, bob.ID, *first.AssigneeID)
	assert.Equal(t, types.RoleAgent, bob.Role)

	comments, err := store.ListComments(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "It is on fire", comments[0].Body)
	assert.False(t, comments[0].IsInternal)
	assert.Equal(t, alice.ID, comments[0].AuthorID)
	assert.Equal(t, "<p>Extinguisher deployed</p>", comments[1].Body)
	assert.True(t, comments[1].IsInternal)

	responses, err := store.ListFormResponses(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "gold", responses[0].Value)

	second, err := store.GetTicketBySourceNumber(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, "(no subject)", second.Subject)
	assert.Equal(t, admin.ID, second.RequesterID, "requester without email falls back to admin")
	assert.Nil(t, second.AssigneeID)
	assert.Equal(t, []string{"billing"}, second.Tags)
	require.NotNil(t, second.SolvedAt)
	assert.True(t, second.SolvedAt.Equal(time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)))
	assert.True(t, second.CreatedAt.Equal(fixedNow), "missing timestamps default to now")

	third, err := store.GetTicketBySourceNumber(ctx, 103)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOnHold, third.Status)
	assert.Equal(t, types.PriorityNormal, third.Priority)
	responses, err = store.ListFormResponses(ctx, third.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "a, b", responses[0].Value)
}

func TestImportTicketsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	_, err := im.ImportTickets(ctx, admin.ID, []byte(threeTickets), "")
	require.NoError(t, err)
	before, err := store.GetStatistics(ctx)
	require.NoError(t, err)

	report, err := im.ImportTickets(ctx, admin.ID, []byte(threeTickets), "")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 3, report.Duplicates)
	assert.Equal(t, 0, report.UsersCreated)
	assert.Equal(t, 0, report.CustomFieldsCreated)
	assert.Equal(t, 0, report.FormResponsesCreated)

	after, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportTicketsFormatTolerance(t *testing.T) {
	records := []string{
		`{"id": 1, "subject": "one", "requester": {"id": 10, "email": "u@example.com"}}`,
		`{"id": 2, "subject": "two", "requester_id": 10}`,
		`{"id": 3, "subject": "three", "requester_id": 11}`,
	}
	inputs := map[string]struct {
		data   string
		format string
	}{
		"array":   {"[" + strings.Join(records, ",") + "]", "json"},
		"wrapper": {`{"tickets": [` + strings.Join(records, ",") + `], "count": 3}`, "json"},
		"jsonl":   {strings.Join(records, "\n") + "\n", "jsonl"},
		"mislabelled jsonl": {strings.Join(records, "\n"), "json"},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			im, _, admin := newTestImporter(t)
			report, err := im.ImportTickets(context.Background(), admin.ID, []byte(in.data), in.format)
			require.NoError(t, err)
			assert.Equal(t, 3, report.Imported)
			assert.Equal(t, 0, report.Skipped)
			assert.Equal(t, 1, report.UsersCreated)
		})
	}
}

func TestImportTicketsPartialFailure(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	var lines []string
	for i := 1; i <= 5; i++ {
		comments := fmt.Sprintf(`[{"author_id": 1, "body": "comment on %d"}]`, i)
		if i == 3 {
			comments = `[{"author_id": 1, "body": "fine"}, "not a comment"]`
		}
		lines = append(lines, fmt.Sprintf(
			`{"id": %d, "subject": "ticket %d", "requester": {"id": 1, "email": "req@example.com"}, "comments": %s}`,
			i, i, comments))
	}

	report, err := im.ImportTickets(ctx, admin.ID, []byte(strings.Join(lines, "\n")), "jsonl")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 4, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.True(t, strings.HasPrefix(report.Errors[0], "ticket #3:"), report.Errors[0])

	_, err = store.GetTicketBySourceNumber(ctx, 3)
	assert.True(t, storage.IsNotFound(err), "nothing is written for a ticket with a malformed comment")

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Tickets)
	assert.Equal(t, 4, stats.Comments)
}

func TestImportTicketsMistypedLineIsSkipped(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{"comments not an array", `"comments": "oops"`},
		{"numeric subject", `"subject": 42`},
		{"object timestamp", `"created_at": {"at": "noon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			im, store, admin := newTestImporter(t)

			var lines []string
			for i := 1; i <= 5; i++ {
				extra := fmt.Sprintf(`"subject": "ticket %d"`, i)
				if i == 3 {
					extra = tt.bad
				}
				lines = append(lines, fmt.Sprintf(`{"id": %d, "requester_id": 1, %s}`, i, extra))
			}

			report, err := im.ImportTickets(ctx, admin.ID, []byte(strings.Join(lines, "\n")), "jsonl")
			require.NoError(t, err)
			assert.Equal(t, 4, report.Imported)
			assert.Equal(t, 1, report.Skipped)
			require.Len(t, report.Errors, 1)
			assert.True(t, strings.HasPrefix(report.Errors[0], "ticket #3:"), report.Errors[0])

			_, err = store.GetTicketBySourceNumber(ctx, 3)
			assert.True(t, storage.IsNotFound(err))
		})
	}
}

func TestImportTicketsRejectedElementsAreSkipped(t *testing.T) {
	im, _, admin := newTestImporter(t)
	data := `[{"id": 1, "requester_id": 5}, "junk", {"subject": "no id"}, {"id": 2, "requester_id": 5}]`

	report, err := im.ImportTickets(context.Background(), admin.ID, []byte(data), "json")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 2)
	assert.True(t, strings.HasPrefix(report.Errors[0], "element 1: "), report.Errors[0])
}

func TestImportTicketsReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)
	data := `[
		{"id": 1, "requester_id": 404, "assignee_id": 405, "submitter_id": 406,
		 "comments": [{"author_id": 407, "body": "who am I"}, {"body": "anonymous"}]},
		{"id": 2, "requester": {"id": 408, "email": "not-an-email"}}
	]`

	report, err := im.ImportTickets(ctx, admin.ID, []byte(data), "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 0, report.UsersCreated)

	for _, n := range []int64{1, 2} {
		ticket, err := store.GetTicketBySourceNumber(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, ticket.RequesterID)
		assert.Nil(t, ticket.AssigneeID, "unresolved assignees stay unassigned")

		comments, err := store.ListComments(ctx, ticket.ID)
		require.NoError(t, err)
		for _, c := range comments {
			_, err := store.GetUser(ctx, c.AuthorID)
			assert.NoError(t, err, "comment author must exist")
		}
	}
}

func TestImportTicketsPlaceholderPromotion(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	_, err := im.ImportTickets(ctx, admin.ID, []byte(`{"id": 1, "requester_id": 1, "custom_fields": [{"id": 77, "value": "x"}]}`), "")
	require.NoError(t, err)
	placeholder, err := store.GetFieldBySourceID(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "Source Field 77", placeholder.Label)

	report, err := im.ImportFieldCatalog(ctx, []byte("Title,Type,ID\n\"Plan, tier\",drop-down,77\nBudget,numeric,78\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped, "header line")

	promoted, err := store.GetFieldBySourceID(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, promoted.ID)
	assert.Equal(t, "Plan, tier", promoted.Label)
	assert.Equal(t, types.FieldSelect, promoted.FieldType)

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FieldDefinitions)
}

func TestImportTicketsFatalErrors(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)
	agent := teststore.CreateUser(t, store, "agent@example.com", types.RoleAgent)

	_, err := im.ImportTickets(ctx, "", []byte(threeTickets), "")
	assert.ErrorIs(t, err, ErrNoAdmin)
	_, err = im.ImportTickets(ctx, "usr-missing", []byte(threeTickets), "")
	assert.ErrorIs(t, err, ErrNoAdmin)
	_, err = im.ImportTickets(ctx, agent.ID, []byte(threeTickets), "")
	assert.ErrorIs(t, err, ErrNoAdmin)

	_, err = im.ImportTickets(ctx, admin.ID, []byte(`{"hello": "world"}`), "")
	assert.ErrorIs(t, err, source.ErrInvalidFormat)
	_, err = im.ImportTickets(ctx, admin.ID, []byte("not json\nat all\n"), "")
	assert.ErrorIs(t, err, source.ErrEmptyOrUnparseable)

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Tickets)
	assert.Equal(t, 0, stats.FieldDefinitions)
	assert.Equal(t, 2, stats.Users, "only the admin and the agent exist")
}

func TestImportTicketsErrorCap(t *testing.T) {
	im, _, admin := newTestImporter(t)
	var lines []string
	for i := 1; i <= 15; i++ {
		lines = append(lines, fmt.Sprintf(`{"id": %d, "requester_id": 1, "comments": [42]}`, i))
	}
	report, err := im.ImportTickets(context.Background(), admin.ID, []byte(strings.Join(lines, "\n")), "jsonl")
	require.NoError(t, err)
	assert.Equal(t, 15, report.Skipped)
	assert.Len(t, report.Errors, types.MaxReportErrors)
	assert.Equal(t, 15, report.TotalErrors())
}

func TestImportTicketsIgnoresCancellation(t *testing.T) {
	im, store, admin := newTestImporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := im.ImportTickets(ctx, admin.ID, []byte(threeTickets), "")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)

	stats, err := store.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tickets)
}

func TestImportTicketsNumberConflictIsSkipped(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)
	local := teststore.NewTicket(admin.ID, 900)
	local.Number = 5
	require.NoError(t, store.CreateTicket(ctx, local))

	report, err := im.ImportTickets(ctx, admin.ID, []byte(`[{"id": 5, "requester_id": 1}, {"id": 6, "requester_id": 1}]`), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "ticket #5:")
}

func TestImportUsers(t *testing.T) {
	ctx := context.Background()
	im, store, _ := newTestImporter(t)

	data := `{"users": [
		{"id": 1, "email": "Zed@Example.com", "name": "Zed", "role": "agent", "time_zone": "UTC"},
		{"id": 2, "name": "No Email"},
		{"id": 3, "email": "admin@example.com", "name": "Admin Again", "role": "end-user"},
		{"email": "missing-id@example.com"}
	]}`
	report, err := im.ImportUsers(ctx, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 2, report.UsersCreated)
	assert.Equal(t, 1, report.Updated, "the existing admin gains an external id")
	assert.Equal(t, 1, report.Skipped)

	zed, err := store.GetUserByEmail(ctx, "zed@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAgent, zed.Role)

	admin, err := store.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)

	report, err = im.ImportUsers(ctx, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 3, report.Duplicates)
	assert.Equal(t, 0, report.Updated)
}

func TestImportUsersThenTicketsReusesUsers(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	_, err := im.ImportUsers(ctx, []byte(`[{"id": 2, "name": "Emailless"}]`))
	require.NoError(t, err)
	user, err := store.GetUserByExternalID(ctx, "source-user-2")
	require.NoError(t, err)

	report, err := im.ImportTickets(ctx, admin.ID, []byte(`{"id": 1, "requester_id": 2}`), "")
	require.NoError(t, err)
	assert.Equal(t, 0, report.UsersCreated)

	ticket, err := store.GetTicketBySourceNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user.ID, ticket.RequesterID)
}

func TestImportFieldCatalogJSON(t *testing.T) {
	ctx := context.Background()
	im, store, _ := newTestImporter(t)

	data := `{"ticket_fields": [
		{"id": 5, "title": "Severity", "type": "tagger", "required": true},
		{"id": 6, "raw_title": "Details", "type": "multi-line", "description": "More"}
	]}`
	report, err := im.ImportFieldCatalog(ctx, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)

	sev, err := store.GetFieldBySourceID(ctx, 5)
	require.NoError(t, err)
	assert.True(t, sev.Required)
	assert.Equal(t, types.FieldText, sev.FieldType)

	_, err = im.ImportFieldCatalog(ctx, []byte("just a header\n"))
	assert.True(t, errors.Is(err, source.ErrEmptyOrUnparseable))
}

func TestImportFieldCatalogWithOverrides(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mappings, err := NewMappings(&config.MappingOverrides{FieldTypes: map[string]string{"tagger": "select"}})
	require.NoError(t, err)
	im := New(store, Options{Mappings: mappings})

	_, err = im.ImportFieldCatalog(ctx, []byte(`[{"id": 5, "title": "Severity", "type": "tagger"}]`))
	require.NoError(t, err)
	sev, err := store.GetFieldBySourceID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, types.FieldSelect, sev.FieldType)
}

func TestResetTicketSequence(t *testing.T) {
	ctx := context.Background()
	im, store, admin := newTestImporter(t)

	reset, err := im.ResetTicketSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset.NextNumber)

	_, err = im.ImportTickets(ctx, admin.ID, []byte(`[{"id": 40, "requester_id": 1}, {"id": 7, "requester_id": 1}]`), "")
	require.NoError(t, err)

	reset, err = im.ResetTicketSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), reset.NextNumber)

	local := &types.Ticket{Subject: "local", Status: types.StatusNew, Priority: types.PriorityNormal, RequesterID: admin.ID}
	require.NoError(t, store.CreateTicket(ctx, local))
	assert.Equal(t, int64(41), local.Number)
}

func TestMappings(t *testing.T) {
	m := DefaultMappings()
	statuses := map[string]types.Status{
		"new": types.StatusNew, "OPEN": types.StatusOpen, "pending": types.StatusPending,
		"hold": types.StatusOnHold, "solved": types.StatusSolved, "closed": types.StatusClosed,
		"deleted": types.StatusNew, "": types.StatusNew,
	}
	for in, want := range statuses {
		assert.Equal(t, want, m.Status(in), "status %q", in)
	}
	priorities := map[string]types.Priority{
		"low": types.PriorityLow, "normal": types.PriorityNormal, "High": types.PriorityHigh,
		"urgent": types.PriorityUrgent, "": types.PriorityNormal, "p1": types.PriorityNormal,
	}
	for in, want := range priorities {
		assert.Equal(t, want, m.Priority(in), "priority %q", in)
	}

	custom, err := NewMappings(&config.MappingOverrides{
		Status:   map[string]string{"hold": "pending", "escalated": "OPEN"},
		Priority: map[string]string{"critical": "urgent"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, custom.Status("hold"))
	assert.Equal(t, types.StatusOpen, custom.Status("Escalated"))
	assert.Equal(t, types.PriorityUrgent, custom.Priority("critical"))

	_, err = NewMappings(&config.MappingOverrides{Status: map[string]string{"x": "LIMBO"}})
	assert.Error(t, err)
	_, err = NewMappings(&config.MappingOverrides{Priority: map[string]string{"x": "MEH"}})
	assert.Error(t, err)
	_, err = NewMappings(&config.MappingOverrides{FieldTypes: map[string]string{"x": "radio"}})
	assert.Error(t, err)
}
