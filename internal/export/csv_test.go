package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/trustledger/internal/domain"
)

func history(entries []*domain.TrustTransaction, tail error) iter.Seq2[*domain.TrustTransaction, error] {
	return func(yield func(*domain.TrustTransaction, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
		if tail != nil {
			yield(nil, tail)
		}
	}
}

func sample() []*domain.TrustTransaction {
	original := "01HZX0000000000000000000A1"
	at := time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC)
	return []*domain.TrustTransaction{
		{
			ID:            original,
			MatterID:      "M-1",
			Type:          domain.TransactionDeposit,
			Amount:        domain.MustParseMoney("1000"),
			BalanceAfter:  domain.MustParseMoney("1000"),
			Description:   `Retainer, "Smith v. Jones"`,
			Reference:     "CHK-1001",
			CreatedAt:     at,
			CreatedBy:     "associate-1",
			CreatedByRole: domain.RoleStandard,
			Sequence:      1,
		},
		{
			ID:            "01HZX0000000000000000000A2",
			MatterID:      "M-1",
			Type:          domain.TransactionWithdrawal,
			Amount:        domain.MustParseMoney("1000"),
			BalanceAfter:  domain.Zero,
			Description:   "Reversal of " + original + ": posted to wrong matter",
			Reference:     original,
			ReversalOf:    &original,
			CreatedAt:     at.Add(time.Hour),
			CreatedBy:     "partner-1",
			CreatedByRole: domain.RoleOverride,
			Sequence:      2,
		},
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteHistory(&buf, history(sample(), nil))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, strings.Split(Header, ","), records[0])

	first := records[1]
	assert.Equal(t, "1", first[colSequence])
	assert.Equal(t, "2026-05-04T14:30:00Z", first[colCreatedAt])
	assert.Equal(t, "1000.00", first[colAmount])
	assert.Equal(t, "1000.00", first[colSigned])
	assert.Equal(t, `Retainer, "Smith v. Jones"`, first[colDesc])
	assert.Equal(t, "", first[colReversalOf])
	assert.Equal(t, "false", first[colShortfall])

	second := records[2]
	assert.Equal(t, "-1000.00", second[colSigned])
	assert.Equal(t, "0.00", second[colBalance])
	assert.Equal(t, records[1][colID], second[colReversalOf])
	assert.Equal(t, "override", second[colRole])
}

func TestWriteHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteHistory(&buf, history(nil, nil))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Header+"\n", buf.String())
}

func TestWriteHistory_StopsOnError(t *testing.T) {
	boom := errors.New("storage unavailable")

	var buf bytes.Buffer
	n, err := WriteHistory(&buf, history(sample()[:1], boom))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

func TestMarshalTransaction_KeepsPrecision(t *testing.T) {
	tx := &domain.TrustTransaction{
		ID:           "t",
		Type:         domain.TransactionRefund,
		Amount:       domain.MustParseMoney("0.125"),
		BalanceAfter: domain.MustParseMoney("10.875"),
	}

	row := MarshalTransaction(tx)
	assert.Equal(t, "0.125", row[colAmount])
	assert.Equal(t, "-0.125", row[colSigned])
	assert.Equal(t, "10.875", row[colBalance])
}
