package domain

import "time"

// SortOrder controls history ordering by sequence.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// HistoryFilter narrows a history read. Zero values mean "no filter".
type HistoryFilter struct {
	From  *time.Time
	To    *time.Time
	Types []TransactionType
	Order SortOrder
	// PageSize bounds one storage round-trip; the history sequence keeps paging until exhausted.
	PageSize int
	// Cursor is the last sequence already seen; the next page starts after it.
	Cursor int64
	// Limit caps the total number of entries returned. Zero means all.
	Limit int
	// MaxSequence excludes entries written after the given sequence.
	MaxSequence *int64
}

// Descending reports whether the newest entries come first.
func (f HistoryFilter) Descending() bool {
	return f.Order == SortDescending
}

// Matches applies the filter to one entry.
func (f HistoryFilter) Matches(tx *TrustTransaction) bool {
	if f.MaxSequence != nil && tx.Sequence > *f.MaxSequence {
		return false
	}
	if f.From != nil && tx.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.CreatedAt.After(*f.To) {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if tx.Type == t {
			return true
		}
	}
	return false
}

// After reports whether seq lies beyond the cursor in the filter's order.
func (f HistoryFilter) After(seq int64) bool {
	if f.Cursor == 0 {
		return true
	}
	if f.Descending() {
		return seq < f.Cursor
	}
	return seq > f.Cursor
}

// HistoryPage is one page of history plus the cursor for the next one.
type HistoryPage struct {
	Transactions []*TrustTransaction
	NextCursor   int64
	HasMore      bool
}
