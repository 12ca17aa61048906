package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.CountDecision("allowed")
	metrics.CountDecision("denied")
	metrics.ObserveResolve(5 * time.Millisecond)
	metrics.CountCache(true)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "tessera_authz_decisions_total") {
		t.Fatalf("expected body to contain tessera_authz_decisions_total, got: %s", body)
	}
	if !strings.Contains(body, "tessera_authz_cache_total") {
		t.Fatalf("expected body to contain tessera_authz_cache_total, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.CountDecision("allowed")
	metrics.ObserveResolve(time.Millisecond)
	metrics.CountCache(false)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}
