package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("sales.invoice", "posted")
	metrics.ObservePosting("sales.invoice", "DUPLICATE_POSTING")
	metrics.ObserveClose("closed")
	_ = metrics.Jobs().Track("ledger:integrity").End(errors.New("boom"))
	metrics.Jobs().AddAnomalies("DIGEST_MISMATCH", 7, 2)

	body := scrape(t, metrics)
	require.Contains(t, body, `ledger_postings_total{outcome="posted",source="sales.invoice"} 1`)
	require.Contains(t, body, `ledger_postings_total{outcome="DUPLICATE_POSTING",source="sales.invoice"} 1`)
	require.Contains(t, body, `ledger_period_closes_total{outcome="closed"} 1`)
	require.Contains(t, body, `ledger_jobs_total{job="ledger:integrity",status="failure"} 1`)
	require.Contains(t, body, `ledger_integrity_anomalies_total{kind="DIGEST_MISMATCH",tenant="7"} 2`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `ledger_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `ledger_http_request_duration_seconds_bucket{route="/test"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObservePosting("x", "posted")
	m.ObserveClose("closed")
	require.Nil(t, m.Jobs())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
