package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

var ibRows = [][]string{
	{"Symbol", "Date/Time", "Quantity", "T. Price", "Proceeds", "Comm/Fee", "Currency"},
	{"AAPL", "2024-03-15, 09:30:00", "10", "172.50", "-1725.00", "-1.00", "USD"},
	{"MSFT", "2024-03-16, 10:00:00", "-5", "420.00", "2100.00", "-1.00", "USD"},
}

func TestDetectBrokerFormat(t *testing.T) {
	t.Run("unique header identifies interactive brokers", func(t *testing.T) {
		got := DetectBrokerFormat(ibRows[0], "trades.csv")
		assert.Equal(t, "interactive_brokers", got)
	})

	t.Run("partial header set with unique headers still matches", func(t *testing.T) {
		got := DetectBrokerFormat([]string{"Symbol", "T. Price", "Comm/Fee"}, "")
		assert.Equal(t, "interactive_brokers", got)
	})

	t.Run("unique header wins over filename", func(t *testing.T) {
		// A schwab-looking filename must not override header evidence.
		got := DetectBrokerFormat(ibRows[0], "schwab_export.csv")
		assert.Equal(t, "interactive_brokers", got)
	})

	t.Run("header set below threshold does not match", func(t *testing.T) {
		headers := []string{"Symbol", "Date/Time", "Quantity", "Proceeds", "Currency", "Basis"}
		// No unique header present; 5 of 7 set headers is below 80%.
		got := DetectBrokerFormat(headers, "")
		assert.Equal(t, "", got)
	})

	t.Run("filename fallback", func(t *testing.T) {
		got := DetectBrokerFormat(nil, "/exports/U1234567_20240315.csv")
		assert.Equal(t, "interactive_brokers", got)
	})

	t.Run("generic file matches nothing", func(t *testing.T) {
		headers := []string{"Ticker", "Side", "Shares", "Price", "Date"}
		assert.Equal(t, "", DetectBrokerFormat(headers, "my_trades.csv"))
	})
}

func TestBrokerMappings(t *testing.T) {
	mappings := BrokerMappings("interactive_brokers", ibRows, true)
	require.NotEmpty(t, mappings)

	byField := make(map[catalog.TargetField]ColumnMapping)
	for _, m := range mappings {
		byField[m.TargetField] = m
	}

	t.Run("all mapped at broker confidence", func(t *testing.T) {
		for _, m := range mappings {
			assert.InDelta(t, 0.95, m.Confidence, 1e-9)
			assert.Equal(t, catalog.MethodBroker, m.DetectionMethod)
		}
	})

	t.Run("covers required fields", func(t *testing.T) {
		assert.Empty(t, MissingRequiredFields(mappings))
	})

	t.Run("type is derived from quantity sign", func(t *testing.T) {
		tm, ok := byField[catalog.FieldType]
		require.True(t, ok)
		assert.Equal(t, TransformDeriveFromQuantitySign, tm.Transformation)
		assert.Equal(t, catalog.FieldAmount, tm.DerivedFrom)
		assert.Equal(t, byField[catalog.FieldAmount].SourceColumn, tm.SourceColumn)
	})

	t.Run("sample values come from data rows", func(t *testing.T) {
		assert.Equal(t, []string{"AAPL", "MSFT"}, byField[catalog.FieldTicker].SampleValues)
	})

	t.Run("unknown broker yields nothing", func(t *testing.T) {
		assert.Nil(t, BrokerMappings("not_a_broker", ibRows, true))
	})
}
