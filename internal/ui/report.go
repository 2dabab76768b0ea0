package ui

import (
	"fmt"
	"strings"

	"github.com/ticketport/ticketport/internal/types"
)

// RenderReport formats an import report for the terminal. Zero counters other
// than imported and skipped are left out.
func RenderReport(title string, r *types.ImportReport) string {
	var b strings.Builder

	icon, status := RenderPass(IconPass), "completed"
	switch {
	case r == nil || !r.Success:
		icon, status = RenderFail(IconFail), "failed"
	case r.Skipped > 0:
		icon, status = RenderWarn(IconWarn), "completed with skipped records"
	}
	fmt.Fprintf(&b, "%s %s %s\n", icon, RenderTitle(title), RenderMuted(status))
	if r == nil {
		return b.String()
	}
	b.WriteString(RenderSeparator())
	b.WriteString("\n")

	line := func(label string, n int, always bool) {
		if n == 0 && !always {
			return
		}
		fmt.Fprintf(&b, "  %s%d\n", LabelStyle.Render(label), n)
	}
	line("Imported", r.Imported, true)
	line("Duplicates", r.Duplicates, false)
	line("Updated", r.Updated, false)
	line("Skipped", r.Skipped, true)
	line("Users created", r.UsersCreated, false)
	line("Custom fields created", r.CustomFieldsCreated, false)
	line("Form responses created", r.FormResponsesCreated, false)

	if len(r.Errors) > 0 {
		b.WriteString("\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s %s\n", RenderFail(IconFail), e)
		}
		if hidden := r.TotalErrors() - len(r.Errors); hidden > 0 {
			fmt.Fprintf(&b, "  %s\n", RenderMuted(fmt.Sprintf("... and %d more (see server log)", hidden)))
		}
	}
	return b.String()
}

// RenderSequenceReset formats the result of a ticket sequence reset.
func RenderSequenceReset(r *types.SequenceReset) string {
	return fmt.Sprintf("%s Ticket sequence reset: next number is %s\n",
		RenderPass(IconPass), RenderAccent(fmt.Sprint(r.NextNumber)))
}
