// Package api exposes the import operations over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/ticketport/ticketport/internal/importer"
	"github.com/ticketport/ticketport/internal/source"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
)

// ErrMissingUpload is returned when a request carries no file.
var ErrMissingUpload = errors.New("no file uploaded")

// DefaultMaxUploadBytes bounds an upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 50 << 20

// multipartMemory is how much of a multipart form is held in memory before
// spilling to disk.
const multipartMemory = 32 << 20

// Config holds what the import handlers need.
type Config struct {
	Importer       *importer.Importer
	Store          storage.Storage
	AdminTokens    map[string]string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler serves the import endpoints.
type Handler struct {
	importer  *importer.Importer
	auth      *Authenticator
	maxUpload int64
	log       *slog.Logger
}

// NewHandler builds the import handlers.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Importer == nil {
		return nil, errors.New("importer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	h := &Handler{
		importer:  cfg.Importer,
		auth:      NewAuthenticator(cfg.Store, cfg.AdminTokens),
		maxUpload: cfg.MaxUploadBytes,
		log:       cfg.Logger,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}
	if h.log == nil {
		h.log = slog.New(slog.DiscardHandler)
	}
	return h, nil
}

// Register mounts the import routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/import/tickets", h.requireAdmin(h.importTickets))
	mux.HandleFunc("POST /api/import/users", h.requireAdmin(h.importUsers))
	mux.HandleFunc("POST /api/import/fields", h.requireAdmin(h.importFields))
	mux.HandleFunc("POST /api/import/sequence/reset", h.requireAdmin(h.resetSequence))
}

func (h *Handler) importTickets(w http.ResponseWriter, r *http.Request, admin *types.User) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && format != "json" && format != "jsonl" {
		WriteJSONError(w, http.StatusBadRequest, "invalid format", fmt.Sprintf("format must be json or jsonl, got %q", format))
		return
	}
	data, ok := h.upload(w, r)
	if !ok {
		return
	}
	report, err := h.importer.ImportTickets(r.Context(), admin.ID, data, format)
	h.respond(w, report, err)
}

func (h *Handler) importUsers(w http.ResponseWriter, r *http.Request, _ *types.User) {
	data, ok := h.upload(w, r)
	if !ok {
		return
	}
	report, err := h.importer.ImportUsers(r.Context(), data)
	h.respond(w, report, err)
}

func (h *Handler) importFields(w http.ResponseWriter, r *http.Request, _ *types.User) {
	data, ok := h.upload(w, r)
	if !ok {
		return
	}
	report, err := h.importer.ImportFieldCatalog(r.Context(), data)
	h.respond(w, report, err)
}

func (h *Handler) resetSequence(w http.ResponseWriter, r *http.Request, _ *types.User) {
	reset, err := h.importer.ResetTicketSequence(r.Context())
	if err != nil {
		h.log.Error("sequence reset failed", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "sequence reset failed", "")
		return
	}
	writeJSON(w, http.StatusOK, reset)
}

func (h *Handler) respond(w http.ResponseWriter, report *types.ImportReport, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, source.ErrInvalidFormat), errors.Is(err, source.ErrEmptyOrUnparseable):
		WriteJSONError(w, http.StatusBadRequest, "failed to parse import file", err.Error())
	case errors.Is(err, importer.ErrNoAdmin):
		WriteJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, "import failed", "")
	}
}

// upload reads the request's file, either the "file" part of a multipart
// form or the raw body. It writes the error response itself and reports
// whether the caller should continue.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	defer r.Body.Close()

	data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			WriteJSONError(w, http.StatusRequestEntityTooLarge, "upload too large",
				fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		case errors.Is(err, ErrMissingUpload):
			WriteJSONError(w, http.StatusBadRequest, ErrMissingUpload.Error(), "send the export as the \"file\" form field or as the request body")
		default:
			WriteJSONError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		}
		return nil, false
	}
	return data, true
}

func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
		defer r.MultipartForm.RemoveAll()
		f, _, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, ErrMissingUpload
			}
			return nil, err
		}
		defer f.Close()
		return nonEmpty(io.ReadAll(f))
	}
	return nonEmpty(io.ReadAll(r.Body))
}

func nonEmpty(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrMissingUpload
	}
	return data, nil
}
