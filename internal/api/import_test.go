package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketport/ticketport/internal/importer"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/storage/memory"
	"github.com/ticketport/ticketport/internal/testutil/teststore"
	"github.com/ticketport/ticketport/internal/types"
)

const (
	adminToken = "admin-secret"
	agentToken = "agent-secret"
)

func newTestServer(t *testing.T, maxUpload int64) (*httptest.Server, storage.Storage) {
	t.Helper()
	store := memory.New()
	teststore.CreateAdmin(t, store)
	teststore.CreateUser(t, store, "agent@example.com", types.RoleAgent)

	h, err := NewHandler(Config{
		Importer: importer.New(store, importer.Options{}),
		Store:    store,
		AdminTokens: map[string]string{
			adminToken:     "Admin@Example.com",
			agentToken:     "agent@example.com",
			"ghost-secret": "ghost@example.com",
		},
		MaxUploadBytes: maxUpload,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, token, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func multipartBody(t *testing.T, field, filename, content string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func TestImportTicketsMultipart(t *testing.T) {
	ts, store := newTestServer(t, 0)
	ct, body := multipartBody(t, "file", "tickets.json",
		`[{"id": 1, "subject": "a", "requester": {"id": 9, "email": "r@example.com"}}, {"id": 2, "requester_id": 9}]`)

	resp := post(t, ts.URL+"/api/import/tickets?format=json", adminToken, ct, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[types.ImportReport](t, resp)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.UsersCreated)

	_, err := store.GetTicketBySourceNumber(t.Context(), 2)
	assert.NoError(t, err)
}

func TestImportTicketsRawBody(t *testing.T) {
	ts, _ := newTestServer(t, 0)
	jsonl := "{\"id\": 1, \"requester_id\": 5}\nnot json\n{\"id\": 2, \"requester_id\": 5}\n"

	resp := post(t, ts.URL+"/api/import/tickets?format=jsonl", adminToken, "application/x-ndjson", strings.NewReader(jsonl))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[types.ImportReport](t, resp)
	assert.Equal(t, 2, report.Imported)
}

func TestImportAuth(t *testing.T) {
	ts, _ := newTestServer(t, 0)
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"unknown token", "nope", http.StatusUnauthorized},
		{"token for missing user", "ghost-secret", http.StatusUnauthorized},
		{"non-admin", agentToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/import/users", tt.token, "application/json", strings.NewReader(`[{"id": 1}]`))
			assert.Equal(t, tt.want, resp.StatusCode)
			body := decode[jsonErrorResponse](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestImportRequestErrors(t *testing.T) {
	ts, store := newTestServer(t, 0)

	t.Run("missing upload", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/import/tickets", adminToken, "application/json", strings.NewReader("  "))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, ErrMissingUpload.Error(), decode[jsonErrorResponse](t, resp).Error)
	})

	t.Run("multipart without file", func(t *testing.T) {
		ct, body := multipartBody(t, "other", "x.json", `{"id": 1}`)
		resp := post(t, ts.URL+"/api/import/tickets", adminToken, ct, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		small, _ := newTestServer(t, 64)
		big := `[` + strings.Repeat(`{"id": 1},`, 20) + `{"id": 2}]`
		resp := post(t, small.URL+"/api/import/tickets", adminToken, "application/json", strings.NewReader(big))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("bad format hint", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/import/tickets?format=xml", adminToken, "application/json", strings.NewReader(`{"id": 1}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unparseable", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/import/tickets", adminToken, "application/json", strings.NewReader(`{"foo": "bar"}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[jsonErrorResponse](t, resp)
		assert.Equal(t, "failed to parse import file", body.Error)
		assert.NotEmpty(t, body.Details)
	})

	stats, err := store.GetStatistics(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Tickets)
}

func TestImportFieldsAndSequenceReset(t *testing.T) {
	ts, _ := newTestServer(t, 0)

	resp := post(t, ts.URL+"/api/import/fields", adminToken, "text/csv", strings.NewReader("Title,Type,ID\nColor,drop-down,3\n"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[types.ImportReport](t, resp)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Skipped)

	resp = post(t, ts.URL+"/api/import/tickets", adminToken, "application/json", strings.NewReader(`{"id": 12, "requester_id": 1}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts.URL+"/api/import/sequence/reset", adminToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := decode[types.SequenceReset](t, resp)
	assert.Equal(t, int64(13), reset.NextNumber)
}

func TestImportRequiresPost(t *testing.T) {
	ts, _ := newTestServer(t, 0)
	resp, err := http.Get(ts.URL + "/api/import/tickets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusTeapot, "  short and stout ", " ")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error": "short and stout"}`, rec.Body.String())
}

func TestNewHandlerValidation(t *testing.T) {
	_, err := NewHandler(Config{Store: memory.New()})
	assert.Error(t, err)
	_, err = NewHandler(Config{Importer: importer.New(memory.New(), importer.Options{})})
	assert.Error(t, err)
}
