package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/v1/applications/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/applications/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/applications/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "jobboard_http_requests_total"))
}

func TestRecorders(t *testing.T) {
	m := New()
	m.StatusTransition("REVIEWING")
	m.Retry("update_status")
	m.CleanupFailure("replace")
	m.CleanupFailure("replace")
	m.OrphansCollected(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("REVIEWING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("update_status")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cleanupFailures.WithLabelValues("replace")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.orphansCollected))

	var none *Metrics
	assert.NotPanics(t, func() { none.CleanupFailure("delete") })
}
