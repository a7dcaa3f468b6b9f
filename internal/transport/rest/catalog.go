// Package rest exposes stored vocabulary catalogs over a read-only JSON API.
package rest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// catalogReader is implemented by indexer.Pipeline.
type catalogReader interface {
	StoredSources(ctx context.Context) ([]string, error)
	ExportStored(ctx context.Context, label string, w io.Writer) error
	StoredEntries(ctx context.Context, filter domain.IndexFilter) ([]domain.IndexEntry, error)
}

// CatalogHandler serves stored catalogs.
type CatalogHandler struct {
	catalogs catalogReader
	log      *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(catalogs catalogReader, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalogs: catalogs, log: log}
}

// Register mounts the catalog routes on mux.
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sources", h.Sources)
	mux.HandleFunc("GET /catalogs/{label}", h.Catalog)
	mux.HandleFunc("GET /catalogs/{label}/entries", h.Entries)
}

// SourcesResponse lists stored source labels.
type SourcesResponse struct {
	Sources []string `json:"sources"`
}

// EntriesResponse is one page of stored entries.
type EntriesResponse struct {
	Source  string          `json:"source"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	Entries []EntryResponse `json:"entries"`
}

// EntryResponse is a stored entry. Position is its index in the catalog.
type EntryResponse struct {
	Term     string `json:"term"`
	IPA      string `json:"ipa"`
	Units    []int  `json:"units"`
	Priority int    `json:"priority"`
	Position int    `json:"position"`
}

// Sources handles GET /sources.
func (h *CatalogHandler) Sources(w http.ResponseWriter, r *http.Request) {
	labels, err := h.catalogs.StoredSources(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, SourcesResponse{Sources: labels})
}

// Catalog handles GET /catalogs/{label}. The body is the same document the
// importer writes to disk.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.catalogs.ExportStored(r.Context(), r.PathValue("label"), &buf); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Entries handles GET /catalogs/{label}/entries with the optional query
// parameters priority (1-3), q (term prefix), limit and offset.
func (h *CatalogHandler) Entries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	rows, err := h.catalogs.StoredEntries(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := EntriesResponse{
		Source:  filter.SourceLabel,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Entries: make([]EntryResponse, 0, len(rows)),
	}
	for _, row := range rows {
		units := row.Units
		if units == nil {
			units = []int{}
		}
		resp.Entries = append(resp.Entries, EntryResponse{
			Term:     row.Term,
			IPA:      row.Phonetic,
			Units:    units,
			Priority: row.Priority.Code(),
			Position: row.Position,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (domain.IndexFilter, error) {
	q := r.URL.Query()
	filter := domain.IndexFilter{
		SourceLabel: r.PathValue("label"),
		Limit:       defaultLimit,
	}
	var errs []domain.FieldError

	if v := q.Get("priority"); v != "" {
		n, err := strconv.Atoi(v)
		p := domain.Priority(n)
		if err != nil || !p.IsValid() {
			errs = append(errs, domain.FieldError{Field: "priority", Message: "must be 1, 2 or 3"})
		} else {
			filter.Priority = &p
		}
	}
	if v := strings.TrimSpace(q.Get("q")); v != "" {
		filter.Search = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			errs = append(errs, domain.FieldError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxLimit)})
		} else {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, domain.FieldError{Field: "offset", Message: "must be >= 0"})
		} else {
			filter.Offset = n
		}
	}

	if len(errs) > 0 {
		return filter, domain.NewValidationErrors(errs)
	}
	return filter, nil
}
