package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock stands in
// for it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository on top of pgx.
type PostgresRepository struct {
	pool DB
}

func NewPostgresRepository(pool DB) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const assetColumns = `id, ticker, name, asset_type, market, currency, units, unit_value,
	acquisition_date, acquisition_price, portfolio_account_id, user_id, is_active,
	created_at, updated_at`

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Ticker, &a.Name, &a.AssetType, &a.Market, &a.Currency,
		&a.Units, &a.UnitValue, &a.AcquisitionDate, &a.AcquisitionPrice,
		&a.PortfolioAccountID, &a.UserID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) FindActiveAsset(ctx context.Context, ticker string, accountID uuid.UUID) (*Asset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE ticker = $1 AND portfolio_account_id = $2 AND is_active = true
		LIMIT 1`, ticker, accountID)
	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active asset %s: %w", ticker, err)
	}
	return asset, nil
}

func (r *PostgresRepository) CreateAsset(ctx context.Context, asset *Asset) error {
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assets (id, ticker, name, asset_type, market, currency, units, unit_value,
			acquisition_date, acquisition_price, portfolio_account_id, user_id, is_active,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		asset.ID, asset.Ticker, asset.Name, asset.AssetType, asset.Market, asset.Currency,
		asset.Units, asset.UnitValue, asset.AcquisitionDate, asset.AcquisitionPrice,
		asset.PortfolioAccountID, asset.UserID, asset.IsActive, asset.CreatedAt, asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create asset %s: %w", asset.Ticker, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateAssetAggregates(ctx context.Context, assetID uuid.UUID, units, unitValue decimal.Decimal, isActive bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin aggregate update: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize aggregate writes per account. Two imports touching the
	// same account queue here instead of clobbering each other.
	if _, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended(portfolio_account_id::text, 0))
		FROM assets WHERE id = $1`, assetID); err != nil {
		return fmt.Errorf("acquire account lock: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE assets
		SET units = $2, unit_value = $3, is_active = $4, updated_at = now()
		WHERE id = $1`, assetID, units, unitValue, isActive)
	if err != nil {
		return fmt.Errorf("update asset aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) RecomputeAssetFromLog(ctx context.Context, assetID uuid.UUID) (*Asset, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin recompute: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended(portfolio_account_id::text, 0))
		FROM assets WHERE id = $1`, assetID); err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT type, amount, price, commission
		FROM transactions
		WHERE asset_id = $1
		ORDER BY date, created_at`, assetID)
	if err != nil {
		return nil, fmt.Errorf("replay transactions: %w", err)
	}
	units := decimal.Zero
	unitValue := decimal.Zero
	for rows.Next() {
		var txType string
		var amount, price, commission decimal.Decimal
		if err := rows.Scan(&txType, &amount, &price, &commission); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		units, unitValue = applyTrade(units, unitValue, txType, amount, price, commission)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("replay transactions: %w", err)
	}

	isActive := units.GreaterThan(decimal.Zero)
	row := tx.QueryRow(ctx, `
		UPDATE assets
		SET units = $2, unit_value = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+assetColumns, assetID, units, unitValue, isActive)
	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store recomputed aggregates: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit recompute: %w", err)
	}
	return asset, nil
}

// applyTrade folds one trade into the running position. Buys move the
// weighted-average cost; sells only reduce units and never go below zero.
func applyTrade(units, unitValue decimal.Decimal, txType string, amount, price, commission decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := amount
	if txType == "sell" {
		change = amount.Neg()
	}
	newUnits := units.Add(change)
	if newUnits.LessThan(decimal.Zero) {
		newUnits = decimal.Zero
	}
	if txType == "buy" && change.GreaterThan(decimal.Zero) && newUnits.GreaterThan(decimal.Zero) {
		totalCost := amount.Mul(price).Add(commission)
		unitValue = units.Mul(unitValue).Add(totalCost).Div(newUnits)
	}
	return newUnits, unitValue
}

func (r *PostgresRepository) ListByTickers(ctx context.Context, userID, accountID uuid.UUID, tickers []string) ([]Transaction, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, asset_id, asset_name, ticker, type, amount, price, date, date_has_time,
			currency, commission, asset_type, market, dollar_rate, default_currency,
			portfolio_account_id, user_id, original_row_number, created_at
		FROM transactions
		WHERE user_id = $1 AND portfolio_account_id = $2 AND ticker = ANY($3)`,
		userID, accountID, tickers)
	if err != nil {
		return nil, fmt.Errorf("list transactions by ticker: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AssetID, &t.AssetName, &t.Ticker, &t.Type,
			&t.Amount, &t.Price, &t.Date, &t.DateHasTime, &t.Currency, &t.Commission,
			&t.AssetType, &t.Market, &t.DollarRate, &t.DefaultCurrency,
			&t.PortfolioAccountID, &t.UserID, &t.OriginalRowNumber, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions by ticker: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) InsertBatch(ctx context.Context, txs []*Transaction) ([]uuid.UUID, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	if len(txs) > MaxBatchSize {
		return nil, fmt.Errorf("insert batch: %d rows exceeds the %d-row atomic limit", len(txs), MaxBatchSize)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	ids := make([]uuid.UUID, 0, len(txs))
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
		ids = append(ids, t.ID)
		batch.Queue(`
			INSERT INTO transactions (id, asset_id, asset_name, ticker, type, amount, price,
				date, date_has_time, currency, commission, asset_type, market, dollar_rate,
				default_currency, portfolio_account_id, user_id, original_row_number, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			t.ID, t.AssetID, t.AssetName, t.Ticker, t.Type, t.Amount, t.Price,
			t.Date, t.DateHasTime, t.Currency, t.Commission, t.AssetType, t.Market,
			t.DollarRate, t.DefaultCurrency, t.PortfolioAccountID, t.UserID,
			t.OriginalRowNumber, t.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range txs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return nil, fmt.Errorf("batch insert row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch insert: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) CreateImportRun(ctx context.Context, run *ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.StartedAt = time.Now().UTC()
	if run.Status == "" {
		run.Status = "running"
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_runs (id, user_id, portfolio_account_id, file_name, status,
			total_rows, imported_rows, skipped_rows, error_rows, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.UserID, run.PortfolioAccountID, run.FileName, run.Status,
		run.TotalRows, run.ImportedRows, run.SkippedRows, run.ErrorRows, run.StartedAt)
	if err != nil {
		return fmt.Errorf("create import run: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FinishImportRun(ctx context.Context, runID uuid.UUID, status string, imported, skipped, errored int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = $2, imported_rows = $3, skipped_rows = $4, error_rows = $5, finished_at = now()
		WHERE id = $1`, runID, status, imported, skipped, errored)
	if err != nil {
		return fmt.Errorf("finish import run %s: %w", runID, err)
	}
	return nil
}
