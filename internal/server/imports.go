package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/importer"
	"github.com/wolfeidau/payledger/internal/models"
)

// createImport runs a batch from a multipart upload with a "file" part and a
// "platform" field. Rejected rows still answer 200 with the summary.
func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", importer.ErrBadUpload, err))
		return
	}
	defer file.Close()

	summary, err := s.importer.Import(r.Context(), tenant, r.FormValue("platform"), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if summary.Failures == nil {
		summary.Failures = []models.RowFailure{}
	}

	zerolog.Ctx(r.Context()).Info().
		Str("session_id", summary.SessionID.String()).
		Int("rejected", summary.Rejected).
		Msg("Import request completed")

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessions, err := s.roster.ImportSessions(r.Context(), tenant, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, toSessionView(session))
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
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

	session, err := s.roster.ImportSession(r.Context(), tenant, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(session))
}
