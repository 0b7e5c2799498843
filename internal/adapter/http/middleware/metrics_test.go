package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/matters/{id}/trust", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, matter := range []string{"M-1", "M-2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/matters/"+matter+"/trust", nil))
	}

	counter := m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/matters/{id}/trust", "418")
	if got := testutil.ToFloat64(counter); got != 2 {
		t.Fatalf("expected counter to be 2, got %v", got)
	}
}

func TestMetricsMiddlewareWithoutRouter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	Metrics(m)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/trust/transactions/tx-9/reverse", nil))

	counter := m.HTTPRequests.WithLabelValues(http.MethodPost, "/api/v1/trust/transactions/{id}/reverse", "201")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("expected counter to be 1, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"matter balance", "/api/v1/matters/M-1/trust", "/api/v1/matters/{id}/trust"},
		{"matter export", "/api/v1/matters/M-1/trust/export", "/api/v1/matters/{id}/trust/export"},
		{"reversal", "/api/v1/trust/transactions/01HX/reverse", "/api/v1/trust/transactions/{id}/reverse"},
		{"firm account", "/api/v1/firm-accounts/IOLTA-1/reconcile", "/api/v1/firm-accounts/{id}/reconcile"},
		{"health", "/health", "/health"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizePath(tc.input); got != tc.expected {
				t.Fatalf("normalizePath(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
