// Package assets resolves the tickers of an import batch to persisted
// asset records, creating the ones that do not exist yet.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

// ErrCreationDisabled is reported for tickers that have no asset when the
// caller disallowed creating one.
var ErrCreationDisabled = errors.New("asset does not exist and creation is disabled")

// metadataChunkSize caps how many symbols one quote lookup carries.
const metadataChunkSize = 100

// Candidate describes the rows of one ticker before assets are resolved.
type Candidate struct {
	Ticker    string
	Name      string
	AssetType string // stock, etf, crypto; blank means stock
	Market    string
	Trades    []Trade
}

// Trade is the slice of a parsed row the resolver needs.
type Trade struct {
	Type   string // buy or sell
	Amount decimal.Decimal
	Price  decimal.Decimal
	Date   time.Time
}

// Resolver finds or creates one asset per distinct ticker.
type Resolver struct {
	repo   repository.AssetRepository
	quotes marketdata.Client
	logger *slog.Logger
}

// NewResolver builds a resolver. quotes may be nil; created assets then
// fall back to the metadata carried by the file itself.
func NewResolver(repo repository.AssetRepository, quotes marketdata.Client, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, quotes: quotes, logger: logger}
}

// Resolve maps each candidate ticker to its asset. Tickers that fail to
// resolve are reported in errs and their rows are expected to be skipped
// by the caller; one bad ticker never aborts the batch. createMissing
// gates asset creation for tickers the account does not hold.
func (r *Resolver) Resolve(ctx context.Context, accountID, userID uuid.UUID, candidates []Candidate, createMissing bool) (map[string]*repository.Asset, map[string]error) {
	resolved := make(map[string]*repository.Asset, len(candidates))
	errs := make(map[string]error)

	var missing []Candidate
	for _, c := range candidates {
		asset, err := r.repo.FindActiveAsset(ctx, c.Ticker, accountID)
		switch {
		case err == nil:
			resolved[c.Ticker] = asset
		case errors.Is(err, repository.ErrAssetNotFound):
			missing = append(missing, c)
		default:
			r.logger.Warn("asset lookup failed",
				slog.String("ticker", c.Ticker),
				slog.String("error", err.Error()))
			errs[c.Ticker] = fmt.Errorf("lookup asset: %w", err)
		}
	}
	if len(missing) == 0 {
		return resolved, errs
	}
	if !createMissing {
		for _, c := range missing {
			errs[c.Ticker] = ErrCreationDisabled
		}
		return resolved, errs
	}

	metadata := r.fetchMetadata(ctx, missing)
	for _, c := range missing {
		asset, err := r.createAsset(ctx, accountID, userID, c, metadata[c.Ticker])
		if err != nil {
			r.logger.Warn("asset creation failed",
				slog.String("ticker", c.Ticker),
				slog.String("error", err.Error()))
			errs[c.Ticker] = err
			continue
		}
		resolved[c.Ticker] = asset
	}
	return resolved, errs
}

// fetchMetadata looks the missing tickers up with the quote provider, one
// chunked pass per run. Lookup failures leave tickers without metadata
// rather than failing resolution.
func (r *Resolver) fetchMetadata(ctx context.Context, missing []Candidate) map[string]marketdata.Quote {
	out := make(map[string]marketdata.Quote, len(missing))
	if r.quotes == nil {
		return out
	}

	symbols := make([]string, 0, len(missing))
	for _, c := range missing {
		symbols = append(symbols, c.Ticker)
	}
	for start := 0; start < len(symbols); start += metadataChunkSize {
		end := start + metadataChunkSize
		if end > len(symbols) {
			end = len(symbols)
		}
		quotes, err := r.quotes.Quotes(ctx, symbols[start:end])
		if err != nil {
			r.logger.Warn("asset metadata lookup failed",
				slog.Int("tickers", end-start),
				slog.String("error", err.Error()))
			continue
		}
		for _, q := range quotes {
			out[strings.ToUpper(q.Symbol)] = q
		}
	}
	return out
}

func (r *Resolver) createAsset(ctx context.Context, accountID, userID uuid.UUID, c Candidate, quote marketdata.Quote) (*repository.Asset, error) {
	acqDate, acqPrice := earliestBuy(c.Trades)

	name := quote.Name
	if name == "" {
		name = c.Name
	}
	if name == "" {
		name = c.Ticker
	}
	assetType := c.AssetType
	if quote.QuoteType != "" {
		assetType = tickers.AssetTypeFromQuote(quote.QuoteType)
	}
	if assetType == "" {
		assetType = "stock"
	}
	market := c.Market
	if quote.Exchange != "" {
		market = quote.Exchange
	}
	currency := quote.Currency
	if currency == "" {
		currency = catalog.CurrencyForMarket(market)
	}

	asset := &repository.Asset{
		ID:                 uuid.New(),
		Ticker:             c.Ticker,
		Name:               name,
		AssetType:          assetType,
		Market:             market,
		Currency:           currency,
		Units:              decimal.Zero,
		UnitValue:          decimal.Zero,
		AcquisitionDate:    acqDate,
		AcquisitionPrice:   acqPrice,
		PortfolioAccountID: accountID,
		UserID:             userID,
		IsActive:           true,
	}
	if err := r.repo.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	r.logger.Info("asset created",
		slog.String("ticker", c.Ticker),
		slog.String("type", assetType),
		slog.String("market", market),
		slog.String("currency", currency))
	return asset, nil
}

// earliestBuy picks the acquisition date and price from the chronologically
// first buy in the batch. A batch with no buy gets the current time and a
// zero price.
func earliestBuy(trades []Trade) (time.Time, decimal.Decimal) {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, t := range sorted {
		if t.Type == "buy" && !t.Date.IsZero() {
			return t.Date, t.Price
		}
	}
	return time.Now().UTC(), decimal.Zero
}
