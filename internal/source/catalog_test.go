package source

import (
	"errors"
	"testing"
)

func TestParseFieldCatalogCSV(t *testing.T) {
	input := "\ufeffDisplay name,Type,Field ID,Description\r\n" +
		"Order Number,numeric,360001234,The order\r\n" +
		"\"Product, Model\",drop-down,\"360005678\"\r\n" +
		"\r\n" +
		"  \"Say \"\"hi\"\"\" , checkbox , 77 \n" +
		"broken line without id\n" +
		"Only,two\n"

	batch := ParseFieldCatalogCSV([]byte(input))
	rows := batch.Fields()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (%+v)", len(rows), batch.Rejected)
	}

	want := []struct {
		id    int64
		label string
		typ   string
	}{
		{360001234, "Order Number", "numeric"},
		{360005678, "Product, Model", "drop-down"},
		{77, `Say "hi"`, "checkbox"},
	}
	for i, w := range want {
		if rows[i].SourceID() != w.id || rows[i].Label() != w.label || rows[i].Type != w.typ {
			t.Errorf("row %d = {%d %q %q}, want {%d %q %q}", i, rows[i].SourceID(), rows[i].Label(), rows[i].Type, w.id, w.label, w.typ)
		}
	}

	// Header plus two malformed lines; blank lines are not counted.
	if len(batch.Rejected) != 3 {
		t.Errorf("rejected = %d, want 3", len(batch.Rejected))
	}
	if batch.Rejected[0].Line != 1 {
		t.Errorf("header rejection line = %d, want 1", batch.Rejected[0].Line)
	}
	if batch.Mode != ModeCSV {
		t.Errorf("Mode = %q", batch.Mode)
	}
}

func TestParseFieldCatalogDispatch(t *testing.T) {
	batch, err := ParseFieldCatalog([]byte(`  [{"id": 77, "title": "Order", "type": "numeric", "required": true}]`))
	if err != nil {
		t.Fatalf("JSON catalog: %v", err)
	}
	if batch.Mode != ModeJSON || !batch.Fields()[0].IsRequired() {
		t.Errorf("JSON catalog decoded as %+v", batch.Fields()[0])
	}

	batch, err = ParseFieldCatalog([]byte("Order,numeric,77\n"))
	if err != nil {
		t.Fatalf("CSV catalog: %v", err)
	}
	if batch.Mode != ModeCSV {
		t.Errorf("Mode = %q, want csv", batch.Mode)
	}

	_, err = ParseFieldCatalog([]byte("Display name,Type,Field ID\n"))
	if !errors.Is(err, ErrEmptyOrUnparseable) {
		t.Errorf("header-only catalog: err = %v", err)
	}
}
