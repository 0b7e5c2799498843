package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/trustledger/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/trust?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/trust?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	wrapped := func(err error) error {
		return domain.NewLedgerError("record transaction", "M-1", nil, err, "")
	}

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid amount", wrapped(domain.ErrInvalidAmount), http.StatusBadRequest},
		{"invalid request", wrapped(domain.ErrInvalidRequest), http.StatusBadRequest},
		{"already reversed", wrapped(domain.ErrAlreadyReversed), http.StatusBadRequest},
		{"unauthorized", wrapped(domain.ErrUnauthorized), http.StatusUnauthorized},
		{"not found", wrapped(domain.ErrNotFound), http.StatusNotFound},
		{"insufficient funds", wrapped(domain.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{"conflict", wrapped(domain.ErrConcurrencyConflict), http.StatusConflict},
		{"timeout", wrapped(domain.ErrTimeout), http.StatusGatewayTimeout},
		{"internal", wrapped(domain.ErrInternal), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(context.Background(), tt.err); got != tt.expected {
				t.Fatalf("mapDomainError(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestMapDomainError_ForbiddenForKnownActor(t *testing.T) {
	ctx := domain.ContextWithActor(context.Background(), &domain.Actor{ID: "v", Role: domain.RoleViewer})
	err := fmt.Errorf("%w: role viewer cannot record trust transactions", domain.ErrUnauthorized)

	if got := mapDomainError(ctx, err); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
}

func TestParseHistoryFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/trust?limit=20&cursor=7&order=DESC&from=2026-01-01T00:00:00Z&type=deposit,refund&type=withdrawal", nil)

	filter, err := parseHistoryFilter(req)
	if err != nil {
		t.Fatalf("parseHistoryFilter() error = %v", err)
	}
	if filter.PageSize != 20 || filter.Cursor != 7 || filter.Order != domain.SortDescending {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.From == nil || filter.From.Year() != 2026 || filter.To != nil {
		t.Fatalf("unexpected time bounds %+v", filter)
	}
	want := []domain.TransactionType{domain.TransactionDeposit, domain.TransactionRefund, domain.TransactionWithdrawal}
	if len(filter.Types) != len(want) {
		t.Fatalf("types = %v, want %v", filter.Types, want)
	}
	for i := range want {
		if filter.Types[i] != want[i] {
			t.Fatalf("types = %v, want %v", filter.Types, want)
		}
	}
}

func TestParseHistoryFilter_Invalid(t *testing.T) {
	for _, query := range []string{"cursor=-1", "cursor=x", "order=sideways", "from=yesterday", "type=loan"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/trust?"+query, nil)
			if _, err := parseHistoryFilter(req); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}
