// Package enricher converts the raw string fields of mapped rows into
// typed, currency-normalized trades. Rows that cannot be repaired are
// rejected individually with a coded error so the rest of the batch
// proceeds.
package enricher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

// Error codes attached to rejected rows. Parse and validation failures
// share one code; the message carries the per-field detail.
const (
	CodeInvalidData   = "INVALID_DATA"
	CodeAssetNotFound = "ASSET_NOT_FOUND"
	CodeDuplicate     = "DUPLICATE_DETECTED"
)

// RawRecord is one mapped but untyped row.
type RawRecord struct {
	RowNumber    int
	Fields       map[catalog.TargetField]string
	TypeFromSign bool // trade direction comes from the sign of the amount
}

// Trade is one fully typed, enriched row ready for persistence.
type Trade struct {
	RowNumber   int
	Ticker      string
	Type        string // buy or sell
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Date        time.Time
	DateHasTime bool
	Currency    string
	Commission  decimal.Decimal
	Market      string
	Description string
	DollarRate  decimal.Decimal
}

// RowError rejects one row with a machine-readable code.
type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Code, e.Message)
}

// Enricher types rows and resolves their USD conversion rates.
type Enricher struct {
	client          marketdata.Client
	rates           *marketdata.RateCache
	defaultCurrency string
	now             func() time.Time
	logger          *slog.Logger
}

func New(client marketdata.Client, rates *marketdata.RateCache, defaultCurrency string, logger *slog.Logger) *Enricher {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Enricher{
		client:          client,
		rates:           rates,
		defaultCurrency: defaultCurrency,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

// Enrich types every record, prefetches the FX rates the batch needs, and
// returns the accepted trades alongside the per-row rejections.
func (e *Enricher) Enrich(ctx context.Context, records []RawRecord) ([]Trade, []RowError) {
	trades := make([]Trade, 0, len(records))
	var rowErrs []RowError

	for _, rec := range records {
		t, rerr := e.enrichRow(rec)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		trades = append(trades, t)
	}

	e.prefetchRates(ctx, trades)
	for i := range trades {
		trades[i].DollarRate = e.usdRate(trades[i].Currency, trades[i].Date)
	}
	return trades, rowErrs
}

func (e *Enricher) enrichRow(rec RawRecord) (Trade, *RowError) {
	t := Trade{RowNumber: rec.RowNumber}

	t.Ticker = catalog.CleanCell(rec.Fields[catalog.FieldTicker])
	if t.Ticker == "" {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData, Message: "ticker is empty"}
	}

	rawAmount := rec.Fields[catalog.FieldAmount]
	amount, ok := catalog.ParseNumber(rawAmount)
	if !ok {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData,
			Message: fmt.Sprintf("cannot parse amount %q", rawAmount)}
	}

	if rec.TypeFromSign {
		// Negative quantity means a sell; the magnitude is the amount.
		if amount.IsNegative() {
			t.Type = "sell"
		} else {
			t.Type = "buy"
		}
	} else {
		normalized, ok := catalog.NormalizeTradeType(rec.Fields[catalog.FieldType])
		if !ok {
			return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData,
				Message: fmt.Sprintf("unrecognized trade type %q", rec.Fields[catalog.FieldType])}
		}
		t.Type = normalized
	}
	t.Amount = amount.Abs()
	if t.Amount.IsZero() {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData, Message: "amount is zero"}
	}

	rawPrice := rec.Fields[catalog.FieldPrice]
	price, ok := catalog.ParseNumber(rawPrice)
	if !ok {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData,
			Message: fmt.Sprintf("cannot parse price %q", rawPrice)}
	}
	if price.Sign() <= 0 {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData,
			Message: fmt.Sprintf("price must be positive, got %q", rawPrice)}
	}
	t.Price = price

	rawDate := rec.Fields[catalog.FieldDate]
	date, hasTime, ok := catalog.ParseDate(rawDate)
	if !ok {
		return t, &RowError{Row: rec.RowNumber, Code: CodeInvalidData,
			Message: fmt.Sprintf("cannot parse date %q", rawDate)}
	}
	if !hasTime {
		// Date-only rows borrow the processing instant's time of day so
		// repeated date-only trades keep a stable order.
		now := e.now()
		date = time.Date(date.Year(), date.Month(), date.Day(),
			now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
	}
	t.Date = date
	t.DateHasTime = hasTime

	if c, ok := catalog.ParseNumber(rec.Fields[catalog.FieldCommission]); ok {
		t.Commission = c.Abs()
	}
	t.Currency = normalizeCurrency(rec.Fields[catalog.FieldCurrency], e.defaultCurrency)
	t.Market = catalog.CleanCell(rec.Fields[catalog.FieldMarket])
	t.Description = catalog.CleanCell(rec.Fields[catalog.FieldDescription])
	return t, nil
}

func normalizeCurrency(raw, fallback string) string {
	c := catalog.CleanCell(raw)
	if len(c) != 3 {
		return fallback
	}
	out := make([]byte, 3)
	for i := 0; i < 3; i++ {
		b := c[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if b < 'A' || b > 'Z' {
			return fallback
		}
		out[i] = b
	}
	return string(out)
}

// prefetchRates warms the rate cache for every distinct currency:date pair
// in the batch, fanning the remote lookups out concurrently.
func (e *Enricher) prefetchRates(ctx context.Context, trades []Trade) {
	type pair struct {
		currency string
		date     time.Time
	}
	need := make(map[string]pair)
	for _, t := range trades {
		if t.Currency == "USD" {
			continue
		}
		key := e.rates.Key(t.Currency, t.Date)
		if _, hit := e.rates.Get(key); hit {
			continue
		}
		need[key] = pair{currency: t.Currency, date: t.Date}
	}
	if len(need) == 0 || e.client == nil {
		return
	}

	var wg sync.WaitGroup
	for key, p := range need {
		wg.Add(1)
		go func(key string, p pair) {
			defer wg.Done()
			rate, err := e.client.USDRate(ctx, p.currency, p.date)
			if err != nil {
				e.logger.Warn("fx rate lookup failed, falling back to static table",
					slog.String("currency", p.currency),
					slog.String("error", err.Error()))
				return
			}
			e.rates.Put(key, rate)
		}(key, p)
	}
	wg.Wait()
}

// usdRate resolves one conversion rate: cache first, then the static
// fallback table. USD is always 1.
func (e *Enricher) usdRate(currency string, date time.Time) decimal.Decimal {
	if currency == "USD" {
		return decimal.NewFromInt(1)
	}
	if rate, ok := e.rates.Get(e.rates.Key(currency, date)); ok {
		return decimal.NewFromFloat(rate)
	}
	if rate, ok := catalog.FallbackUSDRates[currency]; ok {
		return decimal.NewFromFloat(rate)
	}
	return decimal.NewFromInt(1)
}
