package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/trustledger/internal/domain"
)

// Type conversion helpers.
func moneyToNumeric(m domain.Money) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(m.Decimal().String())

	return n
}

func optionalMoneyToNumeric(m *domain.Money) pgtype.Numeric {
	if m == nil {
		return pgtype.Numeric{}
	}
	return moneyToNumeric(*m)
}

func numericToMoney(n pgtype.Numeric) domain.Money {
	if !n.Valid || n.Int == nil {
		return domain.Zero
	}

	return domain.NewMoneyFromDecimal(decimal.NewFromBigInt(n.Int, n.Exp))
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTimeToPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timeToPgTimestamptz(*t)
}

func optionalInt64ToPgInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func stringToPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgTextToString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}
