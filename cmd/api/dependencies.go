package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
	importservice "github.com/FACorreiaa/trade-ledger/internal/domain/imports/service"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/writer"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
	"github.com/FACorreiaa/trade-ledger/pkg/archive"
	"github.com/FACorreiaa/trade-ledger/pkg/config"
	"github.com/FACorreiaa/trade-ledger/pkg/cron"
	"github.com/FACorreiaa/trade-ledger/pkg/db"
	"github.com/FACorreiaa/trade-ledger/pkg/metrics"
	"github.com/FACorreiaa/trade-ledger/pkg/notify"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry

	// Market data
	MarketClient *marketdata.HTTPClient
	QuoteCache   *marketdata.QuoteCache
	RateCache    *marketdata.RateCache
	SymbolIndex  *tickers.SymbolIndex

	// Pipeline
	Repo          repository.Repository
	Validator     *tickers.Validator
	ImportService *importservice.Service

	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initMarketData(); err != nil {
		return nil, fmt.Errorf("failed to init market data: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initMarketData() error {
	d.MarketClient = marketdata.NewHTTPClient(
		d.Config.MarketData.BaseURL,
		d.Config.MarketData.APIKey,
		d.Logger,
		marketdata.WithRateLimit(
			float64(d.Config.MarketData.RateLimitPerSecond),
			d.Config.MarketData.RateLimitBurst,
		),
	)
	d.QuoteCache = marketdata.NewQuoteCache()
	d.RateCache = marketdata.NewRateCache()

	index, err := tickers.NewSymbolIndex()
	if err != nil {
		return fmt.Errorf("create symbol index: %w", err)
	}
	d.SymbolIndex = index

	d.Scheduler = cron.NewScheduler(
		d.QuoteCache, d.RateCache, d.MarketClient,
		d.Config.Import.CacheSweepSchedule, d.Logger,
	)
	return nil
}

func (d *Dependencies) initServices() error {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	importMetrics := metrics.NewImportMetrics(d.Registry)

	d.Repo = repository.NewPostgresRepository(d.DB.Pool)
	d.Validator = tickers.NewValidator(d.MarketClient, d.QuoteCache, d.SymbolIndex, d.Logger)

	enr := enricher.New(d.MarketClient, d.RateCache, d.Config.Import.DefaultCurrency, d.Logger)

	notifier := notify.New(d.Config.Notify.ResendAPIKey, d.Config.Notify.FromEmail, d.Logger)

	opts := []importservice.Option{
		importservice.WithMetrics(importMetrics),
		importservice.WithNotifier(notifier),
		importservice.WithMarketData(d.MarketClient),
		importservice.WithAggregateMode(writer.AggregateMode(d.Config.Import.AggregateMode)),
	}
	if dir := d.Config.Import.ArchiveDir; dir != "" {
		runArchive, err := archive.New(dir)
		if err != nil {
			return fmt.Errorf("open import archive: %w", err)
		}
		opts = append(opts, importservice.WithArchive(runArchive))
	}

	d.ImportService = importservice.New(d.Repo, d.Validator, enr, d.Logger, opts...)

	d.Logger.Info("services initialized")
	return nil
}

// Close releases long-lived resources.
func (d *Dependencies) Close() {
	if d.SymbolIndex != nil {
		if err := d.SymbolIndex.Close(); err != nil {
			d.Logger.Warn("closing symbol index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
