// Package money provides currency-safe totals for import summaries using
// integer minor units and ISO-4217 currency codes.
package money

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Amount is a monetary value in one currency. The zero value is unusable;
// build amounts with FromDecimal or Zero.
type Amount struct {
	m *money.Money
}

// Zero returns a zero amount in the given currency, defaulting to USD for
// unknown codes.
func Zero(currencyCode string) Amount {
	if money.GetCurrency(currencyCode) == nil {
		currencyCode = money.USD
	}
	return Amount{m: money.New(0, currencyCode)}
}

// FromDecimal converts a decimal value into minor units of the currency.
// JPY and other zero-decimal currencies round to whole units.
func FromDecimal(d decimal.Decimal, currencyCode string) Amount {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(money.USD)
	}
	minor := d.Mul(decimal.New(1, int32(currency.Fraction))).Round(0).IntPart()
	return Amount{m: money.New(minor, currency.Code)}
}

// Notional is the cash value of one trade: amount * price + commission.
func Notional(units, price, commission decimal.Decimal, currencyCode string) Amount {
	return FromDecimal(units.Mul(price).Add(commission), currencyCode)
}

// Add sums two amounts of the same currency.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, err := a.m.Add(b.m)
	if err != nil {
		return a, fmt.Errorf("add %s to %s: %w", b.m.Currency().Code, a.m.Currency().Code, err)
	}
	return Amount{m: sum}, nil
}

// Neg flips the sign.
func (a Amount) Neg() Amount {
	return Amount{m: a.m.Negative()}
}

// Convert rescales the amount into another currency at the given rate.
func (a Amount) Convert(rate decimal.Decimal, toCurrency string) Amount {
	d := decimal.New(a.m.Amount(), -int32(a.m.Currency().Fraction))
	return FromDecimal(d.Mul(rate), toCurrency)
}

// Display renders the amount with its currency symbol, e.g. "$1,234.56".
func (a Amount) Display() string {
	if a.m == nil {
		return ""
	}
	return a.m.Display()
}

// Currency returns the ISO-4217 code.
func (a Amount) Currency() string {
	if a.m == nil {
		return ""
	}
	return a.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.m == nil || a.m.IsZero()
}
