package fileio

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
)

// NormalizedTrade is the flat export shape of an enriched trade.
type NormalizedTrade struct {
	Row        int    `csv:"row"`
	Ticker     string `csv:"ticker"`
	Type       string `csv:"type"`
	Amount     string `csv:"amount"`
	Price      string `csv:"price"`
	Date       string `csv:"date"`
	Currency   string `csv:"currency"`
	Commission string `csv:"commission"`
	DollarRate string `csv:"dollar_rate"`
}

// WriteNormalizedCSV exports enriched trades as a normalized CSV, the
// shape the execute stage would persist. Used by the CLI for dry runs.
func WriteNormalizedCSV(w io.Writer, trades []enricher.Trade) error {
	out := make([]NormalizedTrade, 0, len(trades))
	for _, t := range trades {
		out = append(out, NormalizedTrade{
			Row:        t.RowNumber,
			Ticker:     t.Ticker,
			Type:       t.Type,
			Amount:     t.Amount.StringFixed(4),
			Price:      t.Price.StringFixed(2),
			Date:       t.Date.Format("2006-01-02T15:04:05Z07:00"),
			Currency:   t.Currency,
			Commission: t.Commission.StringFixed(2),
			DollarRate: t.DollarRate.String(),
		})
	}
	if err := gocsv.Marshal(&out, w); err != nil {
		return fmt.Errorf("write normalized csv: %w", err)
	}
	return nil
}
