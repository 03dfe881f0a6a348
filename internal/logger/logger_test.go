package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPRequests(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := NewHTTPRequests(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.Equal(t, "/api/entries", inside["path"])
	require.Equal(t, "10.0.0.1", inside["addr"])

	var done map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &done))
	require.Equal(t, "http request", done["message"])
	require.Equal(t, float64(http.StatusTeapot), done["status"])
	require.Equal(t, float64(15), done["bytes"])
	require.Equal(t, "info", done["level"])
}

func TestNewHTTPRequests_ServerError(t *testing.T) {
	var buf bytes.Buffer

	handler := NewHTTPRequests(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/imports", nil))

	var done map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &done))
	require.Equal(t, "error", done["level"])
}
