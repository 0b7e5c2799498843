package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/adapter/http/dto"
	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/export"
	"github.com/iho/trustledger/internal/usecase"
)

// TrustLedgerService defines the ledger operations the handler exposes.
type TrustLedgerService interface {
	RecordTransaction(ctx context.Context, input usecase.RecordTransactionInput) (*domain.TrustTransaction, error)
	ReverseTransaction(ctx context.Context, originalID string, actor *domain.Actor, reason string) (*domain.TrustTransaction, error)
	GetAccount(ctx context.Context, matterID string) (*domain.TrustAccount, error)
	GetHistory(ctx context.Context, matterID string, filter domain.HistoryFilter) iter.Seq2[*domain.TrustTransaction, error]
	ListHistory(ctx context.Context, matterID string, filter domain.HistoryFilter) (*domain.HistoryPage, error)
	VerifyAccount(ctx context.Context, matterID string) (*domain.IntegrityReport, error)
}

// ReconciliationService defines the reconciliation operations the handler exposes.
type ReconciliationService interface {
	Reconcile(ctx context.Context, matterID string, bankStatementBalance domain.Money, asOf time.Time) (*domain.ReconciliationResult, error)
	ReconcileFirm(ctx context.Context, firmAccountID string, bankStatementBalance domain.Money, asOf time.Time) (*domain.FirmReconciliationResult, error)
}

// TrustHandler handles trust account HTTP requests.
type TrustHandler struct {
	ledger          TrustLedgerService
	recon           ReconciliationService
	defaultCurrency string
	logger          zerolog.Logger
	now             func() time.Time
}

// NewTrustHandler creates a new TrustHandler. defaultCurrency is reported for
// matters that have no account yet.
func NewTrustHandler(ledger TrustLedgerService, recon ReconciliationService, defaultCurrency string, logger zerolog.Logger) *TrustHandler {
	return &TrustHandler{
		ledger:          ledger,
		recon:           recon,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Get handles GET /matters/{id}/trust.
func (h *TrustHandler) Get(w http.ResponseWriter, r *http.Request) {
	matterID := chi.URLParam(r, "id")

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), matterID)
	if errors.Is(err, domain.ErrNotFound) {
		account = domain.NewTrustAccount(matterID, "", "", h.defaultCurrency, h.now())
	} else if err != nil {
		writeDomainError(w, r, err)
		return
	}

	page, err := h.ledger.ListHistory(r.Context(), matterID, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrustAccountFromDomain(account, page))
}

// Record handles POST /matters/{id}/trust.
func (h *TrustHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	tx, err := h.ledger.RecordTransaction(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// Reverse handles POST /trust/transactions/{id}/reverse.
func (h *TrustHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req dto.ReverseTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	tx, err := h.ledger.ReverseTransaction(r.Context(), chi.URLParam(r, "id"), nil, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// Export handles GET /matters/{id}/trust/export. The whole file is rendered
// before the first byte is sent so that a failed read still gets a JSON error.
func (h *TrustHandler) Export(w http.ResponseWriter, r *http.Request) {
	matterID := chi.URLParam(r, "id")

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	filter.Limit = parseIntQuery(r, "limit", 0)
	filter.PageSize = domain.MaxPageSize
	filter.Cursor = 0

	var buf bytes.Buffer
	rows, err := export.WriteHistory(&buf, h.ledger.GetHistory(r.Context(), matterID, filter))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.logger.Info().Str("matter_id", matterID).Int("rows", rows).Msg("trust history exported")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "trust-"+matterID+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Verify handles GET /matters/{id}/trust/verify.
func (h *TrustHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.VerifyAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.IntegrityFromDomain(report))
}

// Reconcile handles POST /matters/{id}/trust/reconcile.
func (h *TrustHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	balance, err := req.Balance()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := h.recon.Reconcile(r.Context(), chi.URLParam(r, "id"), balance, req.AsOfOr(h.now()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromDomain(result))
}

// ReconcileFirm handles POST /firm-accounts/{id}/reconcile.
func (h *TrustHandler) ReconcileFirm(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	balance, err := req.Balance()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := h.recon.ReconcileFirm(r.Context(), chi.URLParam(r, "id"), balance, req.AsOfOr(h.now()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FirmReconciliationFromDomain(result))
}
