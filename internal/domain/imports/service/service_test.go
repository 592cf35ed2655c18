package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/detector"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/fileio"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
	"github.com/FACorreiaa/trade-ledger/pkg/archive"
)

// fakeQuotes answers every symbol as a listed US equity.
type fakeQuotes struct{}

func (fakeQuotes) Search(context.Context, string) ([]marketdata.Quote, error) { return nil, nil }

func (fakeQuotes) Quotes(_ context.Context, symbols []string) ([]marketdata.Quote, error) {
	out := make([]marketdata.Quote, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, marketdata.Quote{
			Symbol: s, Name: s + " Inc.", QuoteType: "EQUITY", Exchange: "NASDAQ", Currency: "USD",
		})
	}
	return out, nil
}

func (fakeQuotes) USDRate(context.Context, string, time.Time) (float64, error) { return 1, nil }

// fakeStore is an in-memory repository.Repository.
type fakeStore struct {
	assets      map[string]*repository.Asset
	persisted   []repository.Transaction
	inserted    []*repository.Transaction
	runs        map[uuid.UUID]*repository.ImportRun
	finished    map[uuid.UUID]string
	createFails map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:      make(map[string]*repository.Asset),
		runs:        make(map[uuid.UUID]*repository.ImportRun),
		finished:    make(map[uuid.UUID]string),
		createFails: make(map[string]error),
	}
}

func (f *fakeStore) FindActiveAsset(_ context.Context, ticker string, _ uuid.UUID) (*repository.Asset, error) {
	if a, ok := f.assets[ticker]; ok {
		return a, nil
	}
	return nil, repository.ErrAssetNotFound
}

func (f *fakeStore) CreateAsset(_ context.Context, asset *repository.Asset) error {
	if err := f.createFails[asset.Ticker]; err != nil {
		return err
	}
	f.assets[asset.Ticker] = asset
	return nil
}

func (f *fakeStore) UpdateAssetAggregates(context.Context, uuid.UUID, decimal.Decimal, decimal.Decimal, bool) error {
	return nil
}

func (f *fakeStore) RecomputeAssetFromLog(_ context.Context, id uuid.UUID) (*repository.Asset, error) {
	return &repository.Asset{ID: id}, nil
}

func (f *fakeStore) ListByTickers(_ context.Context, _, _ uuid.UUID, tks []string) ([]repository.Transaction, error) {
	want := make(map[string]bool, len(tks))
	for _, tk := range tks {
		want[tk] = true
	}
	var out []repository.Transaction
	for _, t := range f.persisted {
		if want[t.Ticker] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, txs []*repository.Transaction) ([]uuid.UUID, error) {
	f.inserted = append(f.inserted, txs...)
	ids := make([]uuid.UUID, len(txs))
	for i := range txs {
		ids[i] = uuid.New()
	}
	return ids, nil
}

func (f *fakeStore) CreateImportRun(_ context.Context, run *repository.ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	f.runs[run.ID] = run
	return nil
}

func (f *fakeStore) FinishImportRun(_ context.Context, runID uuid.UUID, status string, _, _, _ int) error {
	f.finished[runID] = status
	return nil
}

func newTestService(t *testing.T, store *fakeStore, opts ...Option) *Service {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	index, err := tickers.NewSymbolIndex()
	require.NoError(t, err)

	client := fakeQuotes{}
	validator := tickers.NewValidator(client, marketdata.NewQuoteCache(), index, logger)
	enr := enricher.New(client, marketdata.NewRateCache(), "USD", logger)
	return New(store, validator, enr, logger, opts...)
}

// tradeGrid is a plain five-column export with a header row.
func tradeGrid(dataRows ...[]string) *fileio.Grid {
	rows := [][]string{{"Ticker", "Type", "Quantity", "Price", "Date"}}
	rows = append(rows, dataRows...)
	return &fileio.Grid{Rows: rows, HasHeader: true, Delimiter: ','}
}

func headerMappings() []detector.ColumnMapping {
	fields := []catalog.TargetField{
		catalog.FieldTicker, catalog.FieldType, catalog.FieldAmount,
		catalog.FieldPrice, catalog.FieldDate,
	}
	out := make([]detector.ColumnMapping, 0, len(fields))
	for i, f := range fields {
		out = append(out, detector.ColumnMapping{
			SourceColumn: i, TargetField: f, Confidence: 0.9,
			DetectionMethod: catalog.MethodHeader,
		})
	}
	return out
}

func TestService_Analyze(t *testing.T) {
	t.Run("known broker export", func(t *testing.T) {
		svc := newTestService(t, newFakeStore())

		grid := &fileio.Grid{
			Rows: [][]string{
				{"Symbol", "Date/Time", "Quantity", "T. Price", "Proceeds", "Comm/Fee", "Currency"},
				{"AAPL", "2024-03-15, 09:30:00", "10", "172.50", "-1725.00", "-1.00", "USD"},
				{"MSFT", "2024-03-16, 10:00:00", "-5", "420.00", "2100.00", "-1.00", "USD"},
			},
			HasHeader: true,
		}

		report, err := svc.Analyze(context.Background(), "U1234567_trades.csv", grid)
		require.NoError(t, err)
		assert.Equal(t, "interactive_brokers", report.DetectedBroker)
		assert.Empty(t, report.MissingRequired)
		assert.True(t, report.Readiness.CanProceed)
		assert.GreaterOrEqual(t, report.Confidence, 0.8)
		assert.Equal(t, 2, report.RowCount)
		assert.Equal(t, 3, report.SampledRows)
		require.NotNil(t, report.Validation)
		assert.Equal(t, 2, report.Validation.Valid)
	})

	t.Run("generic headers map without a broker", func(t *testing.T) {
		svc := newTestService(t, newFakeStore())

		grid := tradeGrid(
			[]string{"AAPL", "buy", "10", "150.00", "2024-03-15"},
			[]string{"MSFT", "sell", "5", "420.00", "2024-03-16"},
		)
		report, err := svc.Analyze(context.Background(), "trades.csv", grid)
		require.NoError(t, err)
		assert.Empty(t, report.DetectedBroker)
		assert.Empty(t, report.MissingRequired)
		assert.True(t, report.Readiness.CanProceed)
		assert.Len(t, report.Mappings, 5)
	})

	t.Run("empty file is rejected", func(t *testing.T) {
		svc := newTestService(t, newFakeStore())
		_, err := svc.Analyze(context.Background(), "empty.csv", &fileio.Grid{})
		assert.Error(t, err)
	})
}

func TestService_Execute(t *testing.T) {
	user, account := uuid.New(), uuid.New()

	req := func(grid *fileio.Grid) ExecuteRequest {
		return ExecuteRequest{
			UserID:              user,
			PortfolioAccountID:  account,
			FileName:            "trades.csv",
			Grid:                grid,
			Mappings:            headerMappings(),
			DefaultCurrency:     "USD",
			CreateMissingAssets: true,
			SkipDuplicates:      true,
		}
	}

	t.Run("clean batch imports fully", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)

		grid := tradeGrid(
			[]string{"AAPL", "buy", "10", "150.00", "2024-03-15"},
			[]string{"AAPL", "buy", "2", "100.00", "2024-03-16"},
			[]string{"MSFT", "sell", "5", "50.00", "2024-03-17"},
		)
		summary, err := svc.Execute(context.Background(), req(grid))
		require.NoError(t, err)

		assert.Equal(t, "succeeded", summary.Status)
		assert.Equal(t, 3, summary.TotalRows)
		assert.Equal(t, 3, summary.Imported)
		assert.Equal(t, 0, summary.Duplicates)
		assert.Empty(t, summary.Errors)
		assert.Equal(t, 1, summary.ChunkCount)
		assert.Len(t, summary.ImportedTransactionIDs, 3)
		// 1500 + 200 - 250
		assert.Equal(t, "$1,450.00", summary.NetInvestedUSD)

		assert.Len(t, store.inserted, 3)
		assert.Len(t, store.assets, 2, "one asset per distinct ticker")
		assert.Equal(t, "succeeded", store.finished[summary.RunID])
	})

	t.Run("rerun of a persisted file imports nothing", func(t *testing.T) {
		store := newFakeStore()
		store.assets["AAPL"] = &repository.Asset{ID: uuid.New(), Ticker: "AAPL", IsActive: true}
		store.persisted = []repository.Transaction{{
			Ticker:             "AAPL",
			Type:               "buy",
			Amount:             decimal.NewFromInt(10),
			Price:              decimal.NewFromInt(150),
			Date:               time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			PortfolioAccountID: account,
			UserID:             user,
		}}
		svc := newTestService(t, store)

		grid := tradeGrid([]string{"AAPL", "buy", "10", "150.00", "2024-03-15"})
		summary, err := svc.Execute(context.Background(), req(grid))
		require.NoError(t, err)

		assert.Equal(t, 0, summary.Imported)
		assert.Equal(t, 1, summary.Duplicates)
		assert.Empty(t, store.inserted)
	})

	t.Run("row errors do not poison the batch", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)

		grid := tradeGrid(
			[]string{"AAPL", "buy", "ten", "150.00", "2024-03-15"},
			[]string{"MSFT", "buy", "5", "420.00", "2024-03-16"},
		)
		summary, err := svc.Execute(context.Background(), req(grid))
		require.NoError(t, err)

		assert.Equal(t, "completed_with_errors", summary.Status)
		assert.Equal(t, 1, summary.Imported)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, enricher.CodeInvalidData, summary.Errors[0].Code)
		assert.Equal(t, 2, summary.Errors[0].Row, "row numbers are file positions")
		assert.Equal(t, "completed_with_errors", store.finished[summary.RunID])
	})

	t.Run("unresolvable ticker skips its rows only", func(t *testing.T) {
		store := newFakeStore()
		store.createFails["BADCO"] = fmt.Errorf("insert failed")
		svc := newTestService(t, store)

		grid := tradeGrid(
			[]string{"BADCO", "buy", "1", "10.00", "2024-03-15"},
			[]string{"AAPL", "buy", "5", "150.00", "2024-03-16"},
		)
		summary, err := svc.Execute(context.Background(), req(grid))
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Imported)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, enricher.CodeAssetNotFound, summary.Errors[0].Code)
		assert.Equal(t, 2, summary.Errors[0].Row)
	})

	t.Run("duplicates surface as errors when skipping is off", func(t *testing.T) {
		store := newFakeStore()
		store.assets["AAPL"] = &repository.Asset{ID: uuid.New(), Ticker: "AAPL", IsActive: true}
		store.persisted = []repository.Transaction{{
			Ticker:             "AAPL",
			Type:               "buy",
			Amount:             decimal.NewFromInt(10),
			Price:              decimal.NewFromInt(150),
			Date:               time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			PortfolioAccountID: account,
			UserID:             user,
		}}
		svc := newTestService(t, store)

		r := req(tradeGrid([]string{"AAPL", "buy", "10", "150.00", "2024-03-15"}))
		r.SkipDuplicates = false
		summary, err := svc.Execute(context.Background(), r)
		require.NoError(t, err)

		assert.Equal(t, 0, summary.Imported, "duplicates are never re-imported")
		assert.Equal(t, 1, summary.Duplicates)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, enricher.CodeDuplicate, summary.Errors[0].Code)
		assert.Equal(t, 2, summary.Errors[0].Row)
		assert.Equal(t, "completed_with_errors", summary.Status)
	})

	t.Run("creation disabled rejects unknown tickers", func(t *testing.T) {
		store := newFakeStore()
		store.assets["AAPL"] = &repository.Asset{ID: uuid.New(), Ticker: "AAPL", IsActive: true}
		svc := newTestService(t, store)

		r := req(tradeGrid(
			[]string{"AAPL", "buy", "5", "150.00", "2024-03-15"},
			[]string{"VWCE", "buy", "5", "110.00", "2024-03-16"},
		))
		r.CreateMissingAssets = false
		summary, err := svc.Execute(context.Background(), r)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Imported)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, enricher.CodeAssetNotFound, summary.Errors[0].Code)
		assert.Equal(t, 3, summary.Errors[0].Row)
		assert.Len(t, store.assets, 1, "no asset may be created when creation is off")
	})

	t.Run("executed runs land in the archive", func(t *testing.T) {
		store := newFakeStore()
		runArchive, err := archive.New(t.TempDir())
		require.NoError(t, err)
		svc := newTestService(t, store, WithArchive(runArchive))

		grid := tradeGrid([]string{"AAPL", "buy", "10", "150.00", "2024-03-15"})
		summary, err := svc.Execute(context.Background(), req(grid))
		require.NoError(t, err)

		r, entry, err := runArchive.Open(user, summary.RunID)
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, "trades.csv", entry.SourceName)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Contains(t, string(data), "AAPL")
	})

	t.Run("batch above the atomic limit is rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)

		rows := make([][]string, 0, repository.MaxBatchSize+1)
		for i := 0; i <= repository.MaxBatchSize; i++ {
			rows = append(rows, []string{"AAPL", "buy", "1", "150.00", "2024-03-15"})
		}
		_, err := svc.Execute(context.Background(), req(tradeGrid(rows...)))
		assert.ErrorIs(t, err, ErrBatchTooLarge)
		assert.Empty(t, store.runs, "rejected batches never open a run")
	})
}

func TestExtractRecords(t *testing.T) {
	t.Run("header row is skipped and tickers normalized", func(t *testing.T) {
		grid := tradeGrid([]string{"$aapl.", "buy", "10", "150.00", "2024-03-15"})
		records := ExtractRecords(grid, headerMappings())
		require.Len(t, records, 1)
		assert.Equal(t, 2, records[0].RowNumber)
		assert.Equal(t, "AAPL", records[0].Fields[catalog.FieldTicker])
		assert.Equal(t, "buy", records[0].Fields[catalog.FieldType])
	})

	t.Run("sign-derived type sets the flag instead of a field", func(t *testing.T) {
		mappings := []detector.ColumnMapping{
			{SourceColumn: 0, TargetField: catalog.FieldTicker},
			{SourceColumn: 1, TargetField: catalog.FieldAmount},
			{
				SourceColumn: 1, TargetField: catalog.FieldType,
				Transformation: detector.TransformDeriveFromQuantitySign,
				DerivedFrom:    catalog.FieldAmount,
			},
		}
		grid := &fileio.Grid{Rows: [][]string{{"AAPL", "-10"}}}
		records := ExtractRecords(grid, mappings)
		require.Len(t, records, 1)
		assert.True(t, records[0].TypeFromSign)
		assert.NotContains(t, records[0].Fields, catalog.FieldType)
		assert.Equal(t, "-10", records[0].Fields[catalog.FieldAmount])
	})

	t.Run("columns past the row end are ignored", func(t *testing.T) {
		grid := &fileio.Grid{Rows: [][]string{{"AAPL", "buy"}}}
		records := ExtractRecords(grid, headerMappings())
		require.Len(t, records, 1)
		assert.Len(t, records[0].Fields, 2)
	})

	t.Run("nil grid yields no records", func(t *testing.T) {
		assert.Nil(t, ExtractRecords(nil, headerMappings()))
	})
}

func TestService_Execute_RowNumbersSurviveChunking(t *testing.T) {
	// A batch at exactly the limit still fits in one run and one chunk.
	store := newFakeStore()
	svc := newTestService(t, store)

	faker := gofakeit.New(42)
	rows := make([][]string, 0, repository.MaxBatchSize)
	for i := 0; i < repository.MaxBatchSize; i++ {
		price := fmt.Sprintf("%.2f", faker.Price(10, 500))
		rows = append(rows, []string{"AAPL", "buy", strconv.Itoa(i + 1), price, "2024-03-15"})
	}
	summary, err := svc.Execute(context.Background(), ExecuteRequest{
		UserID:              uuid.New(),
		PortfolioAccountID:  uuid.New(),
		FileName:            "big.csv",
		Grid:                tradeGrid(rows...),
		Mappings:            headerMappings(),
		DefaultCurrency:     "USD",
		CreateMissingAssets: true,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.MaxBatchSize, summary.Imported)
	assert.Equal(t, 1, summary.ChunkCount)
	require.NotEmpty(t, store.inserted)
	assert.Equal(t, 2, store.inserted[0].OriginalRowNumber)
	assert.Equal(t, repository.MaxBatchSize+1, store.inserted[len(store.inserted)-1].OriginalRowNumber)
}
