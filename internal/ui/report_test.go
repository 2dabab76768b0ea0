package ui

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketport/ticketport/internal/types"
)

func TestRenderReport(t *testing.T) {
	r := &types.ImportReport{Success: true, Imported: 4, Skipped: 1, UsersCreated: 2}
	r.AddError("ticket #3: comment 2: expected object, got string")

	out := RenderReport("tickets", r)
	assert.Contains(t, out, "TICKETS")
	assert.Contains(t, out, "Imported")
	assert.Contains(t, out, "Users created")
	assert.NotContains(t, out, "Duplicates", "zero optional counters are hidden")
	assert.Contains(t, out, "ticket #3:")
}

func TestRenderReportTruncatedErrors(t *testing.T) {
	r := &types.ImportReport{Success: true}
	for i := 0; i < types.MaxReportErrors+3; i++ {
		r.AddError(fmt.Sprintf("ticket #%d: boom", i))
	}
	out := RenderReport("tickets", r)
	assert.Equal(t, types.MaxReportErrors, strings.Count(out, "boom"))
	assert.Contains(t, out, "and 3 more")
}

func TestRenderReportNil(t *testing.T) {
	assert.Contains(t, RenderReport("users", nil), "failed")
}

func TestRenderSequenceReset(t *testing.T) {
	assert.Contains(t, RenderSequenceReset(&types.SequenceReset{NextNumber: 41}), "41")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f), "regular file is not a terminal")
}
