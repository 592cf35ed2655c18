package enricher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

type fakeFXClient struct {
	mu    sync.Mutex
	rates map[string]float64
	fail  bool
	calls int
}

func (f *fakeFXClient) Search(_ context.Context, _ string) ([]marketdata.Quote, error) {
	return nil, nil
}

func (f *fakeFXClient) Quotes(_ context.Context, _ []string) ([]marketdata.Quote, error) {
	return nil, nil
}

func (f *fakeFXClient) USDRate(_ context.Context, currency string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return 0, errors.New("fx provider down")
	}
	if r, ok := f.rates[currency]; ok {
		return r, nil
	}
	return 0, errors.New("unknown currency")
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func record(fields map[catalog.TargetField]string) RawRecord {
	return RawRecord{RowNumber: 2, Fields: fields}
}

func baseFields() map[catalog.TargetField]string {
	return map[catalog.TargetField]string{
		catalog.FieldTicker: "AAPL",
		catalog.FieldType:   "Buy",
		catalog.FieldAmount: "10",
		catalog.FieldPrice:  "172.50",
		catalog.FieldDate:   "2024-03-15",
	}
}

func TestEnricher_Enrich(t *testing.T) {
	e := New(nil, marketdata.NewRateCache(), "USD", testLogger())

	t.Run("typed row comes out clean", func(t *testing.T) {
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(baseFields())})
		require.Empty(t, errs)
		require.Len(t, trades, 1)

		tr := trades[0]
		assert.Equal(t, "AAPL", tr.Ticker)
		assert.Equal(t, "buy", tr.Type)
		assert.Equal(t, "10", tr.Amount.String())
		assert.Equal(t, "172.5", tr.Price.String())
		assert.Equal(t, "USD", tr.Currency)
		assert.Equal(t, "1", tr.DollarRate.String())
		assert.False(t, tr.DateHasTime)
	})

	t.Run("spanish type synonym", func(t *testing.T) {
		f := baseFields()
		f[catalog.FieldType] = "Venta"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
		require.Empty(t, errs)
		assert.Equal(t, "sell", trades[0].Type)
	})

	t.Run("negative amounts become positive magnitudes", func(t *testing.T) {
		f := baseFields()
		f[catalog.FieldType] = "sell"
		f[catalog.FieldAmount] = "-5"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
		require.Empty(t, errs)
		assert.Equal(t, "5", trades[0].Amount.String())
		assert.Equal(t, "sell", trades[0].Type)
	})

	t.Run("sign derives the type when flagged", func(t *testing.T) {
		f := baseFields()
		delete(f, catalog.FieldType)
		f[catalog.FieldAmount] = "-8"
		rec := record(f)
		rec.TypeFromSign = true

		trades, errs := e.Enrich(context.Background(), []RawRecord{rec})
		require.Empty(t, errs)
		assert.Equal(t, "sell", trades[0].Type)
		assert.Equal(t, "8", trades[0].Amount.String())
	})

	t.Run("date only rows borrow the processing time of day", func(t *testing.T) {
		fixed := time.Date(2024, 6, 1, 14, 22, 5, 0, time.UTC)
		e2 := New(nil, marketdata.NewRateCache(), "USD", testLogger())
		e2.now = func() time.Time { return fixed }

		trades, errs := e2.Enrich(context.Background(), []RawRecord{record(baseFields())})
		require.Empty(t, errs)
		assert.Equal(t, "2024-03-15", trades[0].Date.Format("2006-01-02"))
		assert.Equal(t, 14, trades[0].Date.Hour())
		assert.Equal(t, 22, trades[0].Date.Minute())
	})

	t.Run("datetime rows keep their own time", func(t *testing.T) {
		f := baseFields()
		f[catalog.FieldDate] = "2024-03-15 09:30:00"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
		require.Empty(t, errs)
		assert.True(t, trades[0].DateHasTime)
		assert.Equal(t, 9, trades[0].Date.Hour())
	})
}

func TestEnricher_RowErrors(t *testing.T) {
	e := New(nil, marketdata.NewRateCache(), "USD", testLogger())

	tests := []struct {
		name   string
		mutate func(map[catalog.TargetField]string)
		code   string
	}{
		{"empty ticker", func(f map[catalog.TargetField]string) { f[catalog.FieldTicker] = " " }, CodeInvalidData},
		{"unknown type", func(f map[catalog.TargetField]string) { f[catalog.FieldType] = "dividend" }, CodeInvalidData},
		{"unparsable amount", func(f map[catalog.TargetField]string) { f[catalog.FieldAmount] = "ten" }, CodeInvalidData},
		{"zero amount", func(f map[catalog.TargetField]string) { f[catalog.FieldAmount] = "0" }, CodeInvalidData},
		{"unparsable price", func(f map[catalog.TargetField]string) { f[catalog.FieldPrice] = "n/a" }, CodeInvalidData},
		{"zero price", func(f map[catalog.TargetField]string) { f[catalog.FieldPrice] = "0" }, CodeInvalidData},
		{"negative price", func(f map[catalog.TargetField]string) { f[catalog.FieldPrice] = "-172.50" }, CodeInvalidData},
		{"unparsable date", func(f map[catalog.TargetField]string) { f[catalog.FieldDate] = "someday" }, CodeInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseFields()
			tt.mutate(f)
			trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
			assert.Empty(t, trades)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, 2, errs[0].Row)
		})
	}

	t.Run("bad row does not sink the batch", func(t *testing.T) {
		bad := baseFields()
		bad[catalog.FieldDate] = "someday"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(bad), record(baseFields())})
		assert.Len(t, trades, 1)
		assert.Len(t, errs, 1)
	})
}

func TestEnricher_FXRates(t *testing.T) {
	t.Run("provider rate is applied and cached", func(t *testing.T) {
		client := &fakeFXClient{rates: map[string]float64{"EUR": 1.08}}
		cache := marketdata.NewRateCache()
		e := New(client, cache, "USD", testLogger())

		f := baseFields()
		f[catalog.FieldCurrency] = "EUR"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
		require.Empty(t, errs)
		assert.Equal(t, "1.08", trades[0].DollarRate.String())

		// Second batch with the same currency:date hits the cache.
		e.Enrich(context.Background(), []RawRecord{record(f)})
		assert.Equal(t, 1, client.calls)
	})

	t.Run("provider failure falls back to the static table", func(t *testing.T) {
		client := &fakeFXClient{fail: true}
		e := New(client, marketdata.NewRateCache(), "USD", testLogger())

		f := baseFields()
		f[catalog.FieldCurrency] = "EUR"
		trades, errs := e.Enrich(context.Background(), []RawRecord{record(f)})
		require.Empty(t, errs)

		want, ok := catalog.FallbackUSDRates["EUR"]
		require.True(t, ok)
		assert.InDelta(t, want, trades[0].DollarRate.InexactFloat64(), 1e-9)
	})

	t.Run("usd is always one without a lookup", func(t *testing.T) {
		client := &fakeFXClient{rates: map[string]float64{}}
		e := New(client, marketdata.NewRateCache(), "USD", testLogger())

		trades, errs := e.Enrich(context.Background(), []RawRecord{record(baseFields())})
		require.Empty(t, errs)
		assert.Equal(t, "1", trades[0].DollarRate.String())
		assert.Zero(t, client.calls)
	})

	t.Run("distinct dates fetch distinct rates", func(t *testing.T) {
		client := &fakeFXClient{rates: map[string]float64{"EUR": 1.08}}
		e := New(client, marketdata.NewRateCache(), "USD", testLogger())

		a := baseFields()
		a[catalog.FieldCurrency] = "EUR"
		b := baseFields()
		b[catalog.FieldCurrency] = "EUR"
		b[catalog.FieldDate] = "2024-03-18"

		_, errs := e.Enrich(context.Background(), []RawRecord{record(a), record(b)})
		require.Empty(t, errs)
		assert.Equal(t, 2, client.calls)
	})
}
