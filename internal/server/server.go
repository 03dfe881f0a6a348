package server

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/payledger/internal/http"
	"github.com/wolfeidau/payledger/internal/importer"
	"github.com/wolfeidau/payledger/internal/logger"
	"github.com/wolfeidau/payledger/internal/roster"
	"github.com/wolfeidau/payledger/internal/store"
)

// DefaultMaxRequestBytes bounds request bodies, uploads included.
const DefaultMaxRequestBytes int64 = 32 << 20

// Server wraps the HTTP API over the roster and import services
type Server struct {
	roster          *roster.Service
	importer        *importer.WorkbookImporter
	resetter        store.Resetter
	maxRequestBytes int64
}

// NewServer creates a new server over the given services
func NewServer(roster *roster.Service, importer *importer.WorkbookImporter) *Server {
	return &Server{
		roster:          roster,
		importer:        importer,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
}

// WithReset enables DELETE /api/dev/reset, which wipes every table.
func (s *Server) WithReset(resetter store.Resetter) *Server {
	s.resetter = resetter
	return s
}

// WithMaxRequestBytes overrides DefaultMaxRequestBytes.
func (s *Server) WithMaxRequestBytes(limit int64) *Server {
	if limit > 0 {
		s.maxRequestBytes = limit
	}
	return s
}

// Handler returns the HTTP handler for the server. authn must put an
// auth.Tenant in the request context of every /api request it lets through.
func (s *Server) Handler(log zerolog.Logger, authn func(http.Handler) http.Handler, corsOrigins []string) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/imports", s.createImport)
	api.HandleFunc("GET /api/imports", s.listImports)
	api.HandleFunc("GET /api/imports/{id}", s.getImport)

	api.HandleFunc("GET /api/entries", s.listEntries)
	api.HandleFunc("POST /api/entries", s.createEntry)
	api.HandleFunc("GET /api/entries/export", s.exportEntries)
	api.HandleFunc("GET /api/entries/{id}", s.getEntry)
	api.HandleFunc("PATCH /api/entries/{id}", s.updateEntry)
	api.HandleFunc("DELETE /api/entries/{id}", s.deleteEntry)
	api.HandleFunc("GET /api/entries/{id}/history", s.entryHistory)
	api.HandleFunc("GET /api/entries/{id}/history/as-of", s.entryAsOf)
	api.HandleFunc("GET /api/entries/{id}/history/export", s.exportHistory)

	api.HandleFunc("GET /api/organization", s.getOrganization)
	api.HandleFunc("PUT /api/organization", s.updateOrganization)

	if s.resetter != nil {
		api.HandleFunc("DELETE /api/dev/reset", s.reset)
	}

	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/api/", httpmiddleware.MaxBytes(s.maxRequestBytes)(authn(api)))

	return logger.NewHTTPRequests(log)(withCORS(corsOrigins, mux))
}

// withCORS adds CORS support for browser clients of the API.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return middleware.Handler(h)
}
