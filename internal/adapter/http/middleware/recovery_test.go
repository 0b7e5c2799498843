package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	rr := httptest.NewRecorder()
	Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/matters/M-1/trust", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), "ledger exploded") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}
