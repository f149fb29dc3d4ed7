// Package core holds the CRM's domain records and the money and date types
// they share.
//
// Money is kept in integer cents everywhere outside the amortization engine;
// Decimal and MoneyFromDecimal convert at that boundary.
package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units.
type Money struct {
	Cents int64
}

// ParseDecimalToCents converts a decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the value is
// rounded half-up to two places. Signs, empty input and amounts that round to
// zero are rejected with ErrInvalidAmount.
//
//	ParseDecimalToCents("12,34")  -> 1234
//	ParseDecimalToCents("12.345") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

var maxCents = decimal.NewFromInt(1<<62 - 1)

// ParseMoney is ParseDecimalToCents returning Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount as a float64 for display only.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON writes the amount as a quoted decimal, e.g. "8606.64".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a quoted decimal or a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse money %q: %w", s, ErrInvalidAmount)
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// ParsePercent parses a non-negative percentage such as "6.5" or "6,5".
func ParsePercent(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidRate
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.GreaterThan(maxPercent) {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

var maxPercent = decimal.NewFromInt(1000)

// Value stores the amount as integer cents.
func (m Money) Value() (driver.Value, error) { return m.Cents, nil }

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		m.Cents = v
	case nil:
		m.Cents = 0
	default:
		return fmt.Errorf("scan money from %T", src)
	}
	return nil
}
