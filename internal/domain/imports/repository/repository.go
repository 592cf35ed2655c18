// Package repository is the persistence boundary of the import pipeline:
// tradable assets, the transaction ledger, and import run records. The
// postgres implementation keeps every chunk insert atomic and guards asset
// aggregate updates with a per-account advisory lock.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset is a tradable instrument owned by one portfolio account.
type Asset struct {
	ID                 uuid.UUID
	Ticker             string
	Name               string
	AssetType          string // stock, etf, crypto
	Market             string
	Currency           string
	Units              decimal.Decimal
	UnitValue          decimal.Decimal // weighted-average cost per unit
	AcquisitionDate    time.Time
	AcquisitionPrice   decimal.Decimal
	PortfolioAccountID uuid.UUID
	UserID             uuid.UUID
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Transaction is one persisted ledger entry. Amount and price are always
// positive magnitudes; Type carries direction.
type Transaction struct {
	ID                 uuid.UUID
	AssetID            uuid.UUID
	AssetName          string
	Ticker             string
	Type               string // buy or sell
	Amount             decimal.Decimal
	Price              decimal.Decimal
	Date               time.Time
	DateHasTime        bool
	Currency           string
	Commission         decimal.Decimal
	AssetType          string
	Market             string
	DollarRate         decimal.Decimal // FX rate applied at enrichment
	DefaultCurrency    string
	PortfolioAccountID uuid.UUID
	UserID             uuid.UUID
	OriginalRowNumber  int
	CreatedAt          time.Time
}

// ImportRun records one execution of the pipeline for audit and summaries.
type ImportRun struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	PortfolioAccountID uuid.UUID
	FileName           string
	Status             string // running, succeeded, failed
	TotalRows          int
	ImportedRows       int
	SkippedRows        int
	ErrorRows          int
	StartedAt          time.Time
	FinishedAt         *time.Time
}

// ErrAssetNotFound is returned by FindActiveAsset when no active asset
// exists for the ticker/account pair.
var ErrAssetNotFound = errors.New("repository: asset not found")

// AssetRepository manages tradable-asset records.
type AssetRepository interface {
	// FindActiveAsset looks up the active asset for (ticker, account).
	FindActiveAsset(ctx context.Context, ticker string, accountID uuid.UUID) (*Asset, error)
	// CreateAsset persists a new asset; the caller sets the ID.
	CreateAsset(ctx context.Context, asset *Asset) error
	// UpdateAssetAggregates stores new units/unitValue for the asset and
	// flips IsActive off when units reach zero. The update runs under a
	// per-account advisory lock so concurrent imports serialize here.
	UpdateAssetAggregates(ctx context.Context, assetID uuid.UUID, units, unitValue decimal.Decimal, isActive bool) error
	// RecomputeAssetFromLog rebuilds units/unitValue by replaying the
	// asset's full transaction history. Self-healing after a crash between
	// the transaction write and the aggregate update.
	RecomputeAssetFromLog(ctx context.Context, assetID uuid.UUID) (*Asset, error)
}

// TransactionRepository manages the ledger.
type TransactionRepository interface {
	// ListByTickers returns every persisted transaction for the given
	// tickers scoped to one user+account, in one batched read.
	ListByTickers(ctx context.Context, userID, accountID uuid.UUID, tickers []string) ([]Transaction, error)
	// InsertBatch commits the given transactions as one atomic write.
	// Either every row is persisted or none is. Callers are responsible
	// for keeping len(txs) within MaxBatchSize.
	InsertBatch(ctx context.Context, txs []*Transaction) ([]uuid.UUID, error)
}

// ImportRunRepository records pipeline executions.
type ImportRunRepository interface {
	CreateImportRun(ctx context.Context, run *ImportRun) error
	FinishImportRun(ctx context.Context, runID uuid.UUID, status string, imported, skipped, errored int) error
}

// MaxBatchSize is the store's atomic multi-write operation limit.
const MaxBatchSize = 500

// Repository bundles the three persistence concerns the pipeline needs.
type Repository interface {
	AssetRepository
	TransactionRepository
	ImportRunRepository
}
