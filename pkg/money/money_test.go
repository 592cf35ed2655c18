package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotional(t *testing.T) {
	a := Notional(decimal.NewFromInt(10), decimal.RequireFromString("150.50"), decimal.RequireFromString("1.25"), "USD")
	assert.Equal(t, "$1,506.25", a.Display())
	assert.Equal(t, "USD", a.Currency())
}

func TestFromDecimal(t *testing.T) {
	t.Run("fractional cents round to minor units", func(t *testing.T) {
		a := FromDecimal(decimal.RequireFromString("10.005"), "USD")
		assert.Equal(t, "$10.01", a.Display())
	})

	t.Run("zero-decimal currency rounds to whole units", func(t *testing.T) {
		a := FromDecimal(decimal.RequireFromString("1234.56"), "JPY")
		assert.Equal(t, "JPY", a.Currency())
		assert.False(t, a.IsZero())
	})

	t.Run("unknown code falls back to USD", func(t *testing.T) {
		a := FromDecimal(decimal.NewFromInt(5), "???")
		assert.Equal(t, "USD", a.Currency())
	})
}

func TestAmount_Add(t *testing.T) {
	t.Run("same currency", func(t *testing.T) {
		sum, err := Zero("USD").Add(FromDecimal(decimal.NewFromInt(100), "USD"))
		require.NoError(t, err)
		assert.Equal(t, "$100.00", sum.Display())
	})

	t.Run("currency mismatch is an error", func(t *testing.T) {
		_, err := Zero("USD").Add(FromDecimal(decimal.NewFromInt(1), "EUR"))
		assert.Error(t, err)
	})
}

func TestAmount_Convert(t *testing.T) {
	eur := FromDecimal(decimal.NewFromInt(100), "EUR")
	usd := eur.Convert(decimal.RequireFromString("1.08"), "USD")
	assert.Equal(t, "$108.00", usd.Display())
	assert.Equal(t, "USD", usd.Currency())
}

func TestAmount_Neg(t *testing.T) {
	a := FromDecimal(decimal.NewFromInt(50), "USD").Neg()
	sum, err := FromDecimal(decimal.NewFromInt(50), "USD").Add(a)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}
