package domain

import "time"

// ReconciliationStatus is the outcome of a reconciliation.
type ReconciliationStatus string

const (
	ReconciliationMatched    ReconciliationStatus = "matched"
	ReconciliationMismatched ReconciliationStatus = "mismatched"
)

// ReconciliationResult compares one matter's books with the bank at a point in time.
type ReconciliationResult struct {
	MatterID             string
	AsOf                 time.Time
	LedgerBalance        Money
	SubledgerSum         Money
	BankStatementBalance Money
	// Discrepancy is LedgerBalance - BankStatementBalance.
	Discrepancy Money
	// SubledgerDiscrepancy is LedgerBalance - SubledgerSum.
	SubledgerDiscrepancy Money
	TransactionCount     int64
	Status               ReconciliationStatus
}

// FirmReconciliationResult is the three-way reconciliation of a pooled firm trust account.
type FirmReconciliationResult struct {
	FirmAccountID        string
	AsOf                 time.Time
	LedgerBalance        Money
	SubledgerSum         Money
	BankStatementBalance Money
	Discrepancy          Money
	SubledgerDiscrepancy Money
	Status               ReconciliationStatus
	Subledgers           []*SubledgerBalance
	NegativeMatters      []string
}

// SubledgerBalance is one matter's client sub-ledger inside a firm reconciliation.
type SubledgerBalance struct {
	MatterID         string
	ClientID         string
	Balance          Money
	Replayed         Money
	TransactionCount int64
}

// Consistent reports whether the stored running balance matches the replayed history.
func (s *SubledgerBalance) Consistent() bool {
	return s.Balance.Equal(s.Replayed)
}

// BalanceSnapshot is an account's position at a point in time as read from history.
type BalanceSnapshot struct {
	// Balance is balance_after of the last entry in the window.
	Balance Money
	// Replayed is the independently summed signed amounts of the same window.
	Replayed         Money
	TransactionCount int64
	LastSequence     int64
}

// MatterSnapshot is one pooled matter's account and its position as of the
// same read as the rest of its FirmSnapshot.
type MatterSnapshot struct {
	Account  *TrustAccount
	Snapshot *BalanceSnapshot
}

// FirmSnapshot is a pooled firm trust account read at a single point in time.
type FirmSnapshot struct {
	// LedgerBalance is the firm-level aggregate of signed amounts.
	LedgerBalance Money
	// Matters are ordered by matter id.
	Matters []MatterSnapshot
}

// WithinTolerance reports whether |a-b| <= epsilon.
func WithinTolerance(a, b, epsilon Money) bool {
	return !a.Sub(b).Abs().GreaterThan(epsilon)
}

// IntegrityReport is the outcome of replaying an account's full history.
type IntegrityReport struct {
	MatterID         string
	StoredBalance    Money
	ReplayedBalance  Money
	Version          int64
	TransactionCount int64
	Problems         []string
	CheckedAt        time.Time
}

// OK reports whether the replay found no problems.
func (r *IntegrityReport) OK() bool {
	return len(r.Problems) == 0
}
