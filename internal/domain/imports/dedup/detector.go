// Package dedup detects already-imported trades by occurrence counting.
// A re-run of the same file is a no-op, while a file holding three
// identical legitimate trades on top of one persisted copy still imports
// the two missing ones.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
)

// Row is the slice of a parsed trade the detector fingerprints.
type Row struct {
	Index       int // position in the incoming batch
	Ticker      string
	Type        string
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Date        time.Time
	DateHasTime bool
}

// Result partitions the batch into rows to import and rows to skip.
type Result struct {
	Fresh      []Row
	Duplicates []Row
}

// Detector counts persisted occurrences of each trade signature.
type Detector struct {
	repo repository.TransactionRepository
}

func NewDetector(repo repository.TransactionRepository) *Detector {
	return &Detector{repo: repo}
}

// Signature fingerprints one trade. Amount is pinned to four decimals and
// price to two so formatting noise between exports does not defeat the
// match. When the export carried a time of day the full timestamp is used;
// date-only rows compare by calendar day.
func Signature(ticker, txType string, amount, price decimal.Decimal, date time.Time, hasTime bool, accountID uuid.UUID) string {
	day := date.Format("2006-01-02")
	if hasTime {
		day = date.Format(time.RFC3339)
	}
	return strings.Join([]string{
		ticker,
		day,
		amount.StringFixed(4),
		price.StringFixed(2),
		txType,
		accountID.String(),
	}, "|")
}

// Detect splits the batch into fresh and duplicate rows. Per signature,
// with k occurrences in the batch and m already persisted, the first
// max(0, k-m) occurrences are fresh and the remainder are duplicates.
func (d *Detector) Detect(ctx context.Context, userID, accountID uuid.UUID, rows []Row) (Result, error) {
	if len(rows) == 0 {
		return Result{}, nil
	}

	tickers := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.Ticker]; ok {
			continue
		}
		seen[r.Ticker] = struct{}{}
		tickers = append(tickers, r.Ticker)
	}

	existing, err := d.repo.ListByTickers(ctx, userID, accountID, tickers)
	if err != nil {
		return Result{}, fmt.Errorf("load existing transactions: %w", err)
	}
	persisted := make(map[string]int, len(existing))
	for _, t := range existing {
		sig := Signature(t.Ticker, t.Type, t.Amount, t.Price, t.Date, t.DateHasTime, accountID)
		persisted[sig]++
	}

	batchTotal := make(map[string]int, len(rows))
	for _, r := range rows {
		batchTotal[rowSignature(r, accountID)]++
	}

	var res Result
	accepted := make(map[string]int, len(batchTotal))
	for _, r := range rows {
		sig := rowSignature(r, accountID)
		budget := batchTotal[sig] - persisted[sig]
		if budget < 0 {
			budget = 0
		}
		if accepted[sig] < budget {
			accepted[sig]++
			res.Fresh = append(res.Fresh, r)
		} else {
			res.Duplicates = append(res.Duplicates, r)
		}
	}
	return res, nil
}

func rowSignature(r Row, accountID uuid.UUID) string {
	return Signature(r.Ticker, r.Type, r.Amount, r.Price, r.Date, r.DateHasTime, accountID)
}
