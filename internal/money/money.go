// Package money provides fixed-decimal representations for prices,
// share quantities, and P&L so persisted and compared financial values
// never round-trip through a binary float.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a currency amount, always fixed-decimal.
type Money struct {
	d decimal.Decimal
}

// Shares is a position quantity. Decimal rather than int64 so
// fractional-share venues are representable without a second type.
type Shares struct {
	d decimal.Decimal
}

func NewMoney(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: %w", err)
	}
	return Money{d: d}, nil
}

func MoneyFromFloat(f float64) Money   { return Money{d: decimal.NewFromFloat(f)} }
func SharesFromFloat(f float64) Shares { return Shares{d: decimal.NewFromFloat(f)} }
func Zero() Money                      { return Money{d: decimal.Zero} }

func (m Money) Add(o Money) Money      { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money      { return Money{d: m.d.Sub(o.d)} }
func (m Money) Mul(f float64) Money    { return Money{d: m.d.Mul(decimal.NewFromFloat(f))} }
func (m Money) Div(f float64) Money    { return Money{d: m.d.Div(decimal.NewFromFloat(f))} }
func (m Money) Neg() Money             { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money             { return Money{d: m.d.Abs()} }
func (m Money) IsZero() bool           { return m.d.IsZero() }
func (m Money) IsNegative() bool       { return m.d.IsNegative() }
func (m Money) GreaterThan(o Money) bool      { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool         { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool  { return m.d.LessThanOrEqual(o.d) }
func (m Money) Float64() float64       { f, _ := m.d.Float64(); return f }
func (m Money) String() string         { return m.d.StringFixed(2) }

// Cmp returns -1, 0, 1 like decimal.Cmp.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }
func (m *Money) UnmarshalJSON(b []byte) error { return m.d.UnmarshalJSON(b) }

func (m Money) Value() (driver.Value, error) { return m.d.StringFixed(8), nil }
func (m *Money) Scan(v any) error {
	var d decimal.Decimal
	if err := d.Scan(v); err != nil {
		return err
	}
	m.d = d
	return nil
}

func NewShares(amount string) (Shares, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Shares{}, fmt.Errorf("shares: %w", err)
	}
	return Shares{d: d}, nil
}

func (s Shares) Mul(f float64) Shares { return Shares{d: s.d.Mul(decimal.NewFromFloat(f))} }
func (s Shares) IsZero() bool         { return s.d.IsZero() }
func (s Shares) IsPositive() bool     { return s.d.IsPositive() }
func (s Shares) GreaterThanOrEqual(o Shares) bool { return s.d.GreaterThanOrEqual(o.d) }
func (s Shares) LessThan(o Shares) bool { return s.d.LessThan(o.d) }
func (s Shares) Sub(o Shares) Shares  { return Shares{d: s.d.Sub(o.d)} }
func (s Shares) Add(o Shares) Shares  { return Shares{d: s.d.Add(o.d)} }
func (s Shares) Float64() float64     { f, _ := s.d.Float64(); return f }
func (s Shares) String() string       { return s.d.String() }

func (s Shares) Value() (driver.Value, error) { return s.d.String(), nil }
func (s *Shares) Scan(v any) error {
	var d decimal.Decimal
	if err := d.Scan(v); err != nil {
		return err
	}
	s.d = d
	return nil
}

// FloorShares computes floor(dollarAmount / perShareAmount), the share
// count a dollar risk budget buys at a given per-share price/risk.
func FloorShares(dollarAmount, perShareAmount Money) Shares {
	if perShareAmount.d.IsZero() || perShareAmount.d.IsNegative() {
		return Shares{d: decimal.Zero}
	}
	q := dollarAmount.d.Div(perShareAmount.d).Floor()
	if q.IsNegative() {
		q = decimal.Zero
	}
	return Shares{d: q}
}

// RoundTo6dp rounds a share quantity to 6 decimal places, matching the
// idempotency key's canonical quantity representation (spec §6).
func (s Shares) RoundTo6dp() string {
	return s.d.Round(6).String()
}
