package dto

import (
	"time"

	"github.com/iho/trustledger/internal/domain"
)

// TransactionResponse represents a trust transaction in API responses.
type TransactionResponse struct {
	ID            string       `json:"id"`
	MatterID      string       `json:"matter_id"`
	Sequence      int64        `json:"sequence"`
	Type          string       `json:"type"`
	Amount        domain.Money `json:"amount"`
	BalanceAfter  domain.Money `json:"balance_after"`
	Description   string       `json:"description"`
	Reference     string       `json:"reference,omitempty"`
	ReversalOf    *string      `json:"reversal_of,omitempty"`
	CreatedBy     string       `json:"created_by"`
	CreatedByRole string       `json:"created_by_role"`
	Shortfall     bool         `json:"shortfall"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TransactionFromDomain converts a domain entry to a response.
func TransactionFromDomain(t *domain.TrustTransaction) *TransactionResponse {
	return &TransactionResponse{
		ID:            t.ID,
		MatterID:      t.MatterID,
		Sequence:      t.Sequence,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		Reference:     t.Reference,
		ReversalOf:    t.ReversalOf,
		CreatedBy:     t.CreatedBy,
		CreatedByRole: string(t.CreatedByRole),
		Shortfall:     t.Shortfall,
		CreatedAt:     t.CreatedAt,
	}
}

// TransactionsFromDomain converts domain entries to responses.
func TransactionsFromDomain(transactions []*domain.TrustTransaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(transactions))
	for i, t := range transactions {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// TrustAccountResponse is a matter's balance plus one page of its history.
type TrustAccountResponse struct {
	MatterID      string                 `json:"matter_id"`
	ClientID      string                 `json:"client_id,omitempty"`
	FirmAccountID string                 `json:"firm_account_id,omitempty"`
	Currency      string                 `json:"currency"`
	Balance       domain.Money           `json:"balance"`
	Version       int64                  `json:"version"`
	Transactions  []*TransactionResponse `json:"transactions"`
	NextCursor    int64                  `json:"next_cursor,omitempty"`
	HasMore       bool                   `json:"has_more"`
}

// TrustAccountFromDomain combines an account with a history page.
func TrustAccountFromDomain(a *domain.TrustAccount, page *domain.HistoryPage) *TrustAccountResponse {
	resp := &TrustAccountResponse{
		MatterID:      a.MatterID,
		ClientID:      a.ClientID,
		FirmAccountID: a.FirmAccountID,
		Currency:      a.Currency,
		Balance:       a.CurrentBalance,
		Version:       a.Version,
		Transactions:  []*TransactionResponse{},
	}
	if page != nil {
		resp.Transactions = TransactionsFromDomain(page.Transactions)
		resp.NextCursor = page.NextCursor
		resp.HasMore = page.HasMore
	}
	return resp
}

// ReconciliationResponse represents a matter reconciliation.
type ReconciliationResponse struct {
	MatterID             string       `json:"matter_id"`
	AsOf                 time.Time    `json:"as_of"`
	Status               string       `json:"status"`
	LedgerBalance        domain.Money `json:"ledger_balance"`
	SubledgerSum         domain.Money `json:"subledger_sum"`
	BankStatementBalance domain.Money `json:"bank_statement_balance"`
	Discrepancy          domain.Money `json:"discrepancy"`
	SubledgerDiscrepancy domain.Money `json:"subledger_discrepancy"`
	TransactionCount     int64        `json:"transaction_count"`
}

// ReconciliationFromDomain converts a reconciliation result to a response.
func ReconciliationFromDomain(r *domain.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		MatterID:             r.MatterID,
		AsOf:                 r.AsOf,
		Status:               string(r.Status),
		LedgerBalance:        r.LedgerBalance,
		SubledgerSum:         r.SubledgerSum,
		BankStatementBalance: r.BankStatementBalance,
		Discrepancy:          r.Discrepancy,
		SubledgerDiscrepancy: r.SubledgerDiscrepancy,
		TransactionCount:     r.TransactionCount,
	}
}

// SubledgerResponse is one matter line of a firm reconciliation.
type SubledgerResponse struct {
	MatterID         string       `json:"matter_id"`
	ClientID         string       `json:"client_id,omitempty"`
	Balance          domain.Money `json:"balance"`
	Replayed         domain.Money `json:"replayed"`
	TransactionCount int64        `json:"transaction_count"`
}

// FirmReconciliationResponse represents a three-way firm reconciliation.
type FirmReconciliationResponse struct {
	FirmAccountID        string               `json:"firm_account_id"`
	AsOf                 time.Time            `json:"as_of"`
	Status               string               `json:"status"`
	LedgerBalance        domain.Money         `json:"ledger_balance"`
	SubledgerSum         domain.Money         `json:"subledger_sum"`
	BankStatementBalance domain.Money         `json:"bank_statement_balance"`
	Discrepancy          domain.Money         `json:"discrepancy"`
	SubledgerDiscrepancy domain.Money         `json:"subledger_discrepancy"`
	Subledgers           []*SubledgerResponse `json:"subledgers"`
	NegativeMatters      []string             `json:"negative_matters"`
}

// FirmReconciliationFromDomain converts a firm reconciliation result to a response.
func FirmReconciliationFromDomain(r *domain.FirmReconciliationResult) *FirmReconciliationResponse {
	lines := make([]*SubledgerResponse, len(r.Subledgers))
	for i, s := range r.Subledgers {
		lines[i] = &SubledgerResponse{
			MatterID:         s.MatterID,
			ClientID:         s.ClientID,
			Balance:          s.Balance,
			Replayed:         s.Replayed,
			TransactionCount: s.TransactionCount,
		}
	}
	negative := r.NegativeMatters
	if negative == nil {
		negative = []string{}
	}

	return &FirmReconciliationResponse{
		FirmAccountID:        r.FirmAccountID,
		AsOf:                 r.AsOf,
		Status:               string(r.Status),
		LedgerBalance:        r.LedgerBalance,
		SubledgerSum:         r.SubledgerSum,
		BankStatementBalance: r.BankStatementBalance,
		Discrepancy:          r.Discrepancy,
		SubledgerDiscrepancy: r.SubledgerDiscrepancy,
		Subledgers:           lines,
		NegativeMatters:      negative,
	}
}

// IntegrityResponse represents the outcome of replaying an account.
type IntegrityResponse struct {
	MatterID         string       `json:"matter_id"`
	OK               bool         `json:"ok"`
	StoredBalance    domain.Money `json:"stored_balance"`
	ReplayedBalance  domain.Money `json:"replayed_balance"`
	Version          int64        `json:"version"`
	TransactionCount int64        `json:"transaction_count"`
	Problems         []string     `json:"problems"`
	CheckedAt        time.Time    `json:"checked_at"`
}

// IntegrityFromDomain converts an integrity report to a response.
func IntegrityFromDomain(r *domain.IntegrityReport) *IntegrityResponse {
	problems := r.Problems
	if problems == nil {
		problems = []string{}
	}
	return &IntegrityResponse{
		MatterID:         r.MatterID,
		OK:               r.OK(),
		StoredBalance:    r.StoredBalance,
		ReplayedBalance:  r.ReplayedBalance,
		Version:          r.Version,
		TransactionCount: r.TransactionCount,
		Problems:         problems,
		CheckedAt:        r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
