package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfeidau/payledger/internal/roster"
	"github.com/wolfeidau/payledger/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter, err := entryFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.roster.ListEntries(r.Context(), tenant, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view := entryPageView{Entries: make([]entryView, 0, len(page.Entries)), Total: page.Total}
	for _, e := range page.Entries {
		view.Entries = append(view.Entries, toEntryView(e.Entry, e.Latest))
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in roster.EntryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	detail, err := s.roster.CreateEntry(r.Context(), tenant, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryDetailView(detail))
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	detail, err := s.roster.GetEntry(r.Context(), tenant, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDetailView(detail))
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch roster.EntryPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	detail, err := s.roster.UpdateEntry(r.Context(), tenant, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDetailView(detail))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.roster.DeleteEntry(r.Context(), tenant, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entryHistory(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.roster.History(r.Context(), tenant, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSalaryViews(records))
}

// entryAsOf answers the pay in effect on ?date=YYYY-MM-DD.
func (s *Server) entryAsOf(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	date, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest))
		return
	}

	record, err := s.roster.AsOf(r.Context(), tenant, id, date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSalaryView(record))
}

func (s *Server) exportEntries(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter, err := entryFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var columns []string
	if v := r.URL.Query().Get("columns"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := s.roster.ExportEntries(r.Context(), tenant, &buf, filter, columns); err != nil {
		writeError(w, r, err)
		return
	}

	writeWorkbook(w, "entries.xlsx", &buf)
}

func (s *Server) exportHistory(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.roster.ExportHistory(r.Context(), tenant, &buf, id); err != nil {
		writeError(w, r, err)
		return
	}

	writeWorkbook(w, fmt.Sprintf("history-%s.xlsx", id), &buf)
}

func entryFilter(r *http.Request) (store.EntryFilter, error) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit")
	if err != nil {
		return store.EntryFilter{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return store.EntryFilter{}, err
	}

	return store.EntryFilter{
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// writeWorkbook sends a fully rendered workbook so a failed export still
// answers with a JSON error.
func writeWorkbook(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
