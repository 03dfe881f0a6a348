package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/importer"
	"github.com/wolfeidau/payledger/internal/roster"
	"github.com/wolfeidau/payledger/internal/store"
)

var (
	errUnauthenticated = errors.New("unauthenticated")
	errBadRequest      = errors.New("bad request")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Unexpected errors are logged and
// their text is not sent to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		msg = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func statusOf(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrEntryNotFound),
		errors.Is(err, store.ErrSalaryHistoryNotFound),
		errors.Is(err, store.ErrImportSessionNotFound),
		errors.Is(err, store.ErrOrganizationNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrEntryIdentityConflict):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, roster.ErrInvalidInput),
		errors.Is(err, importer.ErrBadUpload),
		errors.Is(err, importer.ErrInvalidPlatform),
		errors.As(err, &tooLarge):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func tenantOf(r *http.Request) (auth.Tenant, error) {
	tenant, ok := auth.TenantFromContext(r.Context())
	if !ok {
		return auth.Tenant{}, errUnauthenticated
	}
	return tenant, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}
