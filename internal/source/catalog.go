package source

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// csvColumn matches one optionally-quoted column. Quoted columns may contain
// commas and doubled quotes.
const csvColumn = `\s*(?:"((?:[^"]|"")*)"|([^,"]*))\s*`

// catalogLineRe matches "display name, type, numeric id[, anything...]".
var catalogLineRe = regexp.MustCompile(`^` + csvColumn + `,` + csvColumn + `,\s*"?(\d+)"?\s*(?:,.*)?$`)

var errCatalogLine = errors.New("not a field catalog row")

// ParseFieldCatalog decodes a field catalog upload. JSON uploads (first
// non-blank byte is [ or {) go through Parse with KindField; anything else is
// read as CSV with ParseFieldCatalogCSV.
func ParseFieldCatalog(data []byte) (*Batch, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return Parse(data, KindField)
	}
	batch := ParseFieldCatalogCSV(data)
	if len(batch.Records) == 0 {
		return nil, emptyBatchError(batch)
	}
	return batch, nil
}

// ParseFieldCatalogCSV reads catalog rows line by line. Lines that do not
// match the expected columns, the header included, are returned in
// Batch.Rejected. Blank lines are ignored.
func ParseFieldCatalogCSV(data []byte) *Batch {
	batch := &Batch{Kind: KindField, Mode: ModeCSV}
	data = bytes.TrimPrefix(data, utf8BOM)

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := parseCatalogLine(line)
		if err != nil {
			batch.Rejected = append(batch.Rejected, &ParseError{Line: i + 1, Err: err})
			continue
		}
		batch.Records = append(batch.Records, row)
	}
	return batch
}

func parseCatalogLine(line string) (*SourceFieldRow, error) {
	m := catalogLineRe.FindStringSubmatch(line)
	if m == nil {
		return nil, errCatalogLine
	}
	id, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil || id <= 0 {
		return nil, errMissingID
	}
	return &SourceFieldRow{
		ID:    ID(id),
		Title: column(m[1], m[2]),
		Type:  column(m[3], m[4]),
	}, nil
}

// column returns the quoted capture when present, unescaping doubled quotes.
func column(quoted, bare string) string {
	if quoted != "" {
		return strings.TrimSpace(strings.ReplaceAll(quoted, `""`, `"`))
	}
	return strings.TrimSpace(bare)
}
