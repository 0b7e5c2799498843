// Package export renders trust history for regulators and auditors.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/iho/trustledger/internal/domain"
)

// Header is the fixed CSV header of a trust history export.
const Header = "transaction_id,matter_id,sequence,created_at,type,amount,signed_amount,balance_after,description,reference,reversal_of,created_by,created_by_role,shortfall"

const (
	numFields     = 14
	colID         = 0
	colMatter     = 1
	colSequence   = 2
	colCreatedAt  = 3
	colType       = 4
	colAmount     = 5
	colSigned     = 6
	colBalance    = 7
	colDesc       = 8
	colRef        = 9
	colReversalOf = 10
	colCreatedBy  = 11
	colRole       = 12
	colShortfall  = 13
)

// WriteHistory writes the header and one row per entry, in the order the
// sequence yields them. It returns the number of rows written. An error from
// the sequence stops the export.
func WriteHistory(w io.Writer, history iter.Seq2[*domain.TrustTransaction, error]) (int, error) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	rows := 0
	for tx, err := range history {
		if err != nil {
			return rows, err
		}
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return rows, fmt.Errorf("writing row %d: %w", rows+2, err)
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}

// MarshalTransaction converts an entry to a CSV row. Money columns use the
// canonical decimal text; nothing passes through a float.
func MarshalTransaction(tx *domain.TrustTransaction) []string {
	row := make([]string, numFields)
	row[colID] = tx.ID
	row[colMatter] = tx.MatterID
	row[colSequence] = strconv.FormatInt(tx.Sequence, 10)
	row[colCreatedAt] = tx.CreatedAt.UTC().Format(time.RFC3339Nano)
	row[colType] = string(tx.Type)
	row[colAmount] = tx.Amount.String()
	row[colSigned] = tx.SignedAmount().String()
	row[colBalance] = tx.BalanceAfter.String()
	row[colDesc] = tx.Description
	row[colRef] = tx.Reference
	if tx.ReversalOf != nil {
		row[colReversalOf] = *tx.ReversalOf
	}
	row[colCreatedBy] = tx.CreatedBy
	row[colRole] = string(tx.CreatedByRole)
	row[colShortfall] = strconv.FormatBool(tx.Shortfall)
	return row
}
