package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/roster"
)

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	org, err := s.roster.Organization(r.Context(), tenant)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationView(org))
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var update roster.OrganizationUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, err)
		return
	}

	org, err := s.roster.UpdateOrganization(r.Context(), tenant, update)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationView(org))
}

// reset wipes all data for every tenant. Only registered in development.
func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if _, err := tenantOf(r); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.resetter.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Warn().Msg("All data reset")
	w.WriteHeader(http.StatusNoContent)
}
