package types

// MaxReportErrors bounds the error strings returned to callers; the full
// detail is only logged.
const MaxReportErrors = 10

// ImportReport summarizes one import request. Optional counters are omitted
// from JSON when they do not apply to the import kind.
type ImportReport struct {
	Success              bool     `json:"success"`
	Imported             int      `json:"imported"`
	Duplicates           int      `json:"duplicates,omitempty"`
	Updated              int      `json:"updated,omitempty"`
	Skipped              int      `json:"skipped"`
	UsersCreated         int      `json:"usersCreated,omitempty"`
	CustomFieldsCreated  int      `json:"customFieldsCreated,omitempty"`
	FormResponsesCreated int      `json:"formResponsesCreated,omitempty"`
	Errors               []string `json:"errors,omitempty"`

	// totalErrors counts every recorded error, including the ones dropped
	// from Errors by the cap.
	totalErrors int
}

// AddError records a per-record failure message, keeping at most
// MaxReportErrors of them.
func (r *ImportReport) AddError(msg string) {
	r.totalErrors++
	if len(r.Errors) < MaxReportErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// TotalErrors returns the number of errors recorded, including truncated ones.
func (r *ImportReport) TotalErrors() int {
	return r.totalErrors
}

// SequenceReset is returned by the ticket numbering reset.
type SequenceReset struct {
	NextNumber int64 `json:"nextNumber"`
}
