package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.SaleCommitted(10 * time.Millisecond)
	m.SaleRejected("insufficient_stock")
	m.SaleRejected("insufficient_stock")
	m.Retry()
	m.Movement("ENTRY")
	m.ChainVerified(false)
	m.ProfileLookup(true)
	m.ProfileLookup(false)
	m.ProfileLookup(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SalesCommitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SalesRejected.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockMovements.WithLabelValues("ENTRY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainVerifications.WithLabelValues("violation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProfileCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfileCacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SaleCommitted(time.Second)
	m.SaleRejected("x")
	m.Retry()
	m.Movement("ENTRY")
	m.ChainVerified(true)
	m.ProfileLookup(false)

	h := m.Instrument("GET /x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New()
	h := m.Instrument("POST /api/sales", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/sales", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "POST /api/sales", "201")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pos_http_requests_total"))
}
