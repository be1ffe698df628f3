// Package money formats amounts in a fixed ISO-4217 currency.
// Amounts are held in minor units by go-money; imported values arrive as
// decimals and are rounded to the currency's fraction on the way in.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, strings.ToUpper(currencyCode))}
}

// NewFromDecimal creates Money from a decimal, rounding half away from zero
// to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	m := Zero(currencyCode)
	minor := amount.Shift(int32(m.m.Currency().Fraction)).Round(0).IntPart()
	return New(minor, currencyCode)
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// ValidCurrency reports whether code is a known ISO-4217 currency
func ValidCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// Format renders a decimal amount in the given currency, e.g. "$1,234.56"
func Format(amount decimal.Decimal, currencyCode string) string {
	return NewFromDecimal(amount, currencyCode).Display()
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}
