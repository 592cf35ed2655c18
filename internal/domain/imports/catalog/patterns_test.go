package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTradeType(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"buy", "buy", true},
		{"BUY", "buy", true},
		{"  Purchase ", "buy", true},
		{"compra", "buy", true},
		{"bought", "buy", true},
		{"b", "buy", true},
		{"sell", "sell", true},
		{"SOLD", "sell", true},
		{"venta", "sell", true},
		{"s", "sell", true},
		{"dividend", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeTradeType(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeVocabulary(t *testing.T) {
	vocab := NewTypeVocabulary()

	t.Run("recognizes synonyms", func(t *testing.T) {
		assert.True(t, vocab.Matches("buy"))
		assert.True(t, vocab.Matches("Market sell order"))
		assert.True(t, vocab.Matches("compra"))
	})

	t.Run("single letters only match exactly", func(t *testing.T) {
		assert.True(t, vocab.Matches("b"))
		assert.False(t, vocab.Matches("dividend reinvestment brochure text "+
			"that happens to be longer than any trade type cell would be"))
	})

	t.Run("rejects unrelated values", func(t *testing.T) {
		assert.False(t, vocab.Matches("AAPL"))
		assert.False(t, vocab.Matches("2024-01-05"))
	})
}

func TestCurrencyForMarket(t *testing.T) {
	assert.Equal(t, "USD", CurrencyForMarket("NASDAQ"))
	assert.Equal(t, "GBP", CurrencyForMarket("LSE"))
	assert.Equal(t, "COP", CurrencyForMarket("BVC"))
	assert.Equal(t, "USD", CurrencyForMarket("UNKNOWN-EXCHANGE"))
	assert.Equal(t, "USD", CurrencyForMarket(""))
}
