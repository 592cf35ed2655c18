// Package writer persists enriched trades in atomic chunks and folds the
// resulting position changes into each asset's weighted-average cost.
package writer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
)

// CodeWriteFailed marks rows lost to a failed chunk commit.
const CodeWriteFailed = "WRITE_FAILED"

// AggregateMode selects how asset positions are updated after a write.
type AggregateMode string

const (
	// AggregateReplay rebuilds units and unit value from the full
	// transaction log. Crash-safe; the default.
	AggregateReplay AggregateMode = "replay"
	// AggregateDelta folds only the imported trades into the stored
	// aggregates. Cheaper for very large histories.
	AggregateDelta AggregateMode = "delta"
)

// Result reports what one write pass persisted.
type Result struct {
	Imported   int
	ChunkCount int
	// TransactionIDs holds the persisted row ids in commit order.
	// Rows of failed chunks never appear here.
	TransactionIDs []uuid.UUID
	RowErrors      []enricher.RowError
}

// Writer commits trades chunk by chunk and updates asset aggregates.
type Writer struct {
	repo   repository.Repository
	mode   AggregateMode
	logger *slog.Logger
}

func New(repo repository.Repository, mode AggregateMode, logger *slog.Logger) *Writer {
	if mode == "" {
		mode = AggregateReplay
	}
	return &Writer{repo: repo, mode: mode, logger: logger}
}

// Write persists the trades in chunks of at most repository.MaxBatchSize
// rows. Each chunk commits atomically; when one fails its rows are
// reported as WRITE_FAILED and the remaining chunks still run. Aggregates
// are updated once per touched asset after the inserts.
func (w *Writer) Write(ctx context.Context, userID, accountID uuid.UUID, assets map[string]*repository.Asset, trades []enricher.Trade, defaultCurrency string) (Result, error) {
	var res Result
	touched := make(map[uuid.UUID]*repository.Asset)

	for start := 0; start < len(trades); start += repository.MaxBatchSize {
		end := start + repository.MaxBatchSize
		if end > len(trades) {
			end = len(trades)
		}
		chunk := trades[start:end]
		res.ChunkCount++

		rows := make([]*repository.Transaction, 0, len(chunk))
		for _, t := range chunk {
			asset := assets[t.Ticker]
			rows = append(rows, &repository.Transaction{
				AssetID:            asset.ID,
				AssetName:          asset.Name,
				Ticker:             t.Ticker,
				Type:               t.Type,
				Amount:             t.Amount,
				Price:              t.Price,
				Date:               t.Date,
				DateHasTime:        t.DateHasTime,
				Currency:           t.Currency,
				Commission:         t.Commission,
				AssetType:          asset.AssetType,
				Market:             asset.Market,
				DollarRate:         t.DollarRate,
				DefaultCurrency:    defaultCurrency,
				PortfolioAccountID: accountID,
				UserID:             userID,
				OriginalRowNumber:  t.RowNumber,
			})
		}

		ids, err := w.repo.InsertBatch(ctx, rows)
		if err != nil {
			w.logger.Error("chunk commit failed",
				slog.Int("chunk", res.ChunkCount),
				slog.Int("rows", len(chunk)),
				slog.String("error", err.Error()))
			for _, t := range chunk {
				res.RowErrors = append(res.RowErrors, enricher.RowError{
					Row:     t.RowNumber,
					Code:    CodeWriteFailed,
					Message: fmt.Sprintf("chunk %d failed to commit", res.ChunkCount),
				})
			}
			continue
		}
		res.Imported += len(chunk)
		res.TransactionIDs = append(res.TransactionIDs, ids...)
		for _, t := range chunk {
			asset := assets[t.Ticker]
			touched[asset.ID] = asset
		}
	}

	if err := w.updateAggregates(ctx, touched, trades, res.RowErrors); err != nil {
		return res, err
	}
	return res, nil
}

func (w *Writer) updateAggregates(ctx context.Context, touched map[uuid.UUID]*repository.Asset, trades []enricher.Trade, failed []enricher.RowError) error {
	if len(touched) == 0 {
		return nil
	}

	if w.mode == AggregateReplay {
		for id := range touched {
			if _, err := w.repo.RecomputeAssetFromLog(ctx, id); err != nil {
				return fmt.Errorf("recompute asset %s: %w", id, err)
			}
		}
		return nil
	}

	failedRows := make(map[int]bool, len(failed))
	for _, e := range failed {
		failedRows[e.Row] = true
	}
	byTicker := make(map[string][]enricher.Trade)
	for _, t := range trades {
		if failedRows[t.RowNumber] {
			continue
		}
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t)
	}
	for id, asset := range touched {
		units, unitValue := asset.Units, asset.UnitValue
		for _, t := range byTicker[asset.Ticker] {
			units, unitValue = FoldTrade(units, unitValue, t)
		}
		active := units.GreaterThan(decimal.Zero)
		if err := w.repo.UpdateAssetAggregates(ctx, id, units, unitValue, active); err != nil {
			return fmt.Errorf("update asset %s: %w", id, err)
		}
	}
	return nil
}

// FoldTrade applies one trade to a running position. Sells reduce units,
// floored at zero; only net buys move the weighted-average unit value.
func FoldTrade(units, unitValue decimal.Decimal, t enricher.Trade) (decimal.Decimal, decimal.Decimal) {
	change := t.Amount
	if t.Type == "sell" {
		change = t.Amount.Neg()
	}
	newUnits := units.Add(change)
	if newUnits.LessThan(decimal.Zero) {
		newUnits = decimal.Zero
	}
	if t.Type == "buy" && newUnits.GreaterThan(decimal.Zero) {
		totalCost := t.Amount.Mul(t.Price).Add(t.Commission)
		unitValue = units.Mul(unitValue).Add(totalCost).Div(newUnits)
	}
	return newUnits, unitValue
}
