package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point amount. It never passes through a binary float.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoneyFromInt returns a whole-unit amount.
func NewMoneyFromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// NewMoneyFromMinor returns an amount given in minor units at the given scale,
// e.g. NewMoneyFromMinor(1999, 2) is 19.99.
func NewMoneyFromMinor(minor int64, scale int32) Money {
	return Money{d: decimal.New(minor, -scale)}
}

// NewMoneyFromDecimal wraps an existing decimal.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// ParseMoney parses a decimal string such as "1000.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{d: m.d.Abs()}
}

// Cmp compares m and o: -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports whether m == o regardless of representation (1.0 equals 1.00).
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) LessThan(o Money) bool {
	return m.d.LessThan(o.d)
}

func (m Money) GreaterThan(o Money) bool {
	return m.d.GreaterThan(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// Decimal exposes the underlying decimal for storage adapters.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Scale returns the number of significant fractional digits (10.50 -> 1).
func (m Money) Scale() int32 {
	s := m.d.String()
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	return int32(len(s) - dot - 1)
}

// String renders at least two fractional digits: 1000 -> "1000.00", 0.125 -> "0.125".
func (m Money) String() string {
	if m.Scale() <= 2 {
		return m.d.StringFixed(2)
	}
	return m.d.String()
}

// MarshalJSON encodes the amount as a JSON string to keep it exact for every consumer.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON string. Bare numbers are rejected so that no
// client can route an amount through a float on its way in.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: amount must be a decimal string", ErrInvalidAmount)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer using the exact decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.d.String(), nil
}

// SumMoney adds all amounts.
func SumMoney(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
