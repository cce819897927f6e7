package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jm := jobmetrics.NewMetrics(metrics.Registerer())
	jm.AddStockDiscrepancies(2)
	require.NoError(t, jm.Track("inventory:stock_reconcile").End(nil))

	body := scrape(t, metrics)
	require.Contains(t, body, "odyssey_stock_reconcile_discrepancies_total 2")
	require.Contains(t, body, "odyssey_stock_reconcile_last_discrepancies 2")
	require.Contains(t, body, `odyssey_jobs_total{job="inventory:stock_reconcile",status="success"} 1`)
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/inventory/adjustments/{id}/approve")

	req := httptest.NewRequest(http.MethodPost, "/inventory/adjustments/7/approve", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="409",method="POST",route="/inventory/adjustments/{id}/approve"} 1`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{method="POST",route="/inventory/adjustments/{id}/approve"`)
	require.Contains(t, body, "odyssey_http_requests_in_flight 0")
}

func TestNilMetricsHandlerIsUnavailable(t *testing.T) {
	var metrics *Metrics
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
