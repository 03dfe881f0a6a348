package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	cfg := Config{ServiceName: "payledger"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1.0, cfg.SampleRatio)
	require.Equal(t, 10*time.Second, cfg.MetricInterval)

	cfg = Config{ServiceName: "payledger", SampleRatio: 1.5}
	require.Error(t, cfg.Validate())

	cfg = Config{}
	require.EqualError(t, cfg.Validate(), "service name is required")
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), "api")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m.ImportRowsTotal)
	require.Same(t, m, GetMetrics())
}
