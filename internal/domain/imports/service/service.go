// Package service orchestrates the two pipeline stages: analyzing a trade
// file into column mappings plus a readiness verdict, and executing a
// confirmed import against the ledger.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/assets"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/dedup"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/detector"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/fileio"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/repository"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/scoring"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/writer"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
	"github.com/FACorreiaa/trade-ledger/pkg/archive"
	"github.com/FACorreiaa/trade-ledger/pkg/metrics"
	"github.com/FACorreiaa/trade-ledger/pkg/money"
	"github.com/FACorreiaa/trade-ledger/pkg/notify"
)

// analysisSampleLimit caps how many rows the analysis stage inspects.
const analysisSampleLimit = 100

// ErrBatchTooLarge rejects execute requests above the atomic write limit.
var ErrBatchTooLarge = fmt.Errorf("import batch exceeds %d rows", repository.MaxBatchSize)

// AnalysisReport is the full outcome of the analysis stage.
type AnalysisReport struct {
	DetectedBroker   string                     `json:"detected_broker,omitempty"`
	Mappings         []detector.ColumnMapping   `json:"mappings"`
	MissingRequired  []catalog.TargetField      `json:"missing_required,omitempty"`
	UnmappedColumns  []int                      `json:"unmapped_columns,omitempty"`
	Validation       *tickers.ValidationSummary `json:"validation,omitempty"`
	Confidence       float64                    `json:"confidence"`
	Readiness        scoring.Readiness          `json:"readiness"`
	Warnings         []string                   `json:"warnings,omitempty"`
	Suggestions      []string                   `json:"suggestions,omitempty"`
	RowCount         int                        `json:"row_count"`
	SampledRows      int                        `json:"sampled_rows"`
	ProcessingTimeMs int64                      `json:"processing_time_ms"`
}

// ExecuteRequest carries one confirmed import.
type ExecuteRequest struct {
	UserID             uuid.UUID
	PortfolioAccountID uuid.UUID
	FileName           string
	Grid               *fileio.Grid
	Mappings           []detector.ColumnMapping
	DefaultCurrency    string
	NotifyEmail        string

	// CreateMissingAssets permits the resolver to create assets for
	// tickers the account does not hold yet. When off, rows for unknown
	// tickers fail with ASSET_NOT_FOUND.
	CreateMissingAssets bool
	// SkipDuplicates drops already-imported rows silently. When off,
	// each duplicate is reported as a DUPLICATE_DETECTED row error.
	// Duplicates are never re-imported.
	SkipDuplicates bool
}

// ImportSummary is the outcome of the execute stage.
type ImportSummary struct {
	RunID      uuid.UUID           `json:"run_id"`
	Status     string              `json:"status"`
	TotalRows  int                 `json:"total_rows"`
	Imported   int                 `json:"imported"`
	Duplicates int                 `json:"duplicates"`
	Errors     []enricher.RowError `json:"errors,omitempty"`
	ChunkCount int                 `json:"chunk_count"`
	// ImportedTransactionIDs identifies every persisted row, in commit
	// order, so callers can reference or roll back what landed.
	ImportedTransactionIDs []uuid.UUID `json:"imported_transaction_ids,omitempty"`
	// NetInvestedUSD is the USD notional of imported buys minus sells,
	// formatted for display.
	NetInvestedUSD string `json:"net_invested_usd,omitempty"`
}

// Service wires the pipeline stages together.
type Service struct {
	repo      repository.Repository
	columns   *detector.ColumnDetector
	validator *tickers.Validator
	enricher  *enricher.Enricher
	resolver  *assets.Resolver
	dedup     *dedup.Detector
	writer    *writer.Writer
	archive   *archive.Archive
	metrics   *metrics.ImportMetrics
	notifier  *notify.Notifier
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option customizes optional service collaborators.
type Option func(*Service)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.ImportMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier attaches the summary email sender.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithArchive retains a normalized copy of every executed import.
func WithArchive(a *archive.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithMarketData lets asset creation pull instrument metadata (class,
// market, currency, display name) from the quote provider.
func WithMarketData(c marketdata.Client) Option {
	return func(s *Service) { s.resolver = assets.NewResolver(s.repo, c, s.logger) }
}

// WithAggregateMode selects how asset aggregates are refreshed after a
// write. The default replays the transaction log.
func WithAggregateMode(mode writer.AggregateMode) Option {
	return func(s *Service) { s.writer = writer.New(s.repo, mode, s.logger) }
}

func New(
	repo repository.Repository,
	validator *tickers.Validator,
	enr *enricher.Enricher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		columns:   detector.NewColumnDetector(),
		validator: validator,
		enricher:  enr,
		resolver:  assets.NewResolver(repo, nil, logger),
		dedup:     dedup.NewDetector(repo),
		writer:    writer.New(repo, writer.AggregateReplay, logger),
		tracer:    otel.Tracer("imports"),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze inspects a parsed file and reports how confidently it can be
// imported. It never mutates state.
func (s *Service) Analyze(ctx context.Context, fileName string, grid *fileio.Grid) (*AnalysisReport, error) {
	ctx, span := s.tracer.Start(ctx, "imports.Analyze",
		trace.WithAttributes(attribute.String("file.name", fileName)))
	defer span.End()

	start := time.Now()
	if grid == nil || len(grid.Rows) == 0 {
		return nil, fmt.Errorf("analyze %s: file has no rows", fileName)
	}

	sample := grid.Rows
	if len(sample) > analysisSampleLimit {
		sample = sample[:analysisSampleLimit]
	}
	width := 0
	for _, row := range sample {
		if len(row) > width {
			width = len(row)
		}
	}

	var headers []string
	if grid.HasHeader {
		headers = grid.Rows[0]
	}

	brokerID := detector.DetectBrokerFormat(headers, fileName)
	var mappings []detector.ColumnMapping
	if brokerID != "" {
		mappings = detector.BrokerMappings(brokerID, sample, grid.HasHeader)
	}
	if len(mappings) == 0 {
		brokerID = ""
		mappings = s.columns.Detect(sample, grid.HasHeader)
	}
	missing := detector.MissingRequiredFields(mappings)

	var validation *tickers.ValidationSummary
	if col, ok := mappedColumn(mappings, catalog.FieldTicker); ok {
		raw := columnValues(sample, col, grid.HasHeader)
		validation = s.validator.Validate(ctx, raw)
	}

	score := scoring.Score(mappings, missing, validation, brokerID)
	warnings, suggestions := scoring.Feedback(mappings, missing, validation, brokerID)

	report := &AnalysisReport{
		DetectedBroker:   brokerID,
		Mappings:         mappings,
		MissingRequired:  missing,
		UnmappedColumns:  detector.UnmappedColumns(mappings, width),
		Validation:       validation,
		Confidence:       score,
		Readiness:        scoring.EvaluateReadiness(score, missing),
		Warnings:         warnings,
		Suggestions:      suggestions,
		RowCount:         dataRowCount(grid),
		SampledRows:      len(sample),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	span.SetAttributes(
		attribute.Float64("analysis.confidence", score),
		attribute.String("analysis.broker", brokerID),
		attribute.Bool("analysis.can_proceed", report.Readiness.CanProceed),
	)
	s.metrics.ObserveAnalysis(time.Since(start).Seconds())
	s.logger.Info("file analyzed",
		slog.String("file", fileName),
		slog.String("broker", brokerID),
		slog.Float64("confidence", score),
		slog.Bool("can_proceed", report.Readiness.CanProceed))
	return report, nil
}

// Execute imports a confirmed batch: resolve assets, drop duplicates,
// enrich, and persist. Row-level failures are collected, not fatal.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ImportSummary, error) {
	ctx, span := s.tracer.Start(ctx, "imports.Execute",
		trace.WithAttributes(attribute.String("file.name", req.FileName)))
	defer span.End()

	records := ExtractRecords(req.Grid, req.Mappings)
	if len(records) == 0 {
		return nil, fmt.Errorf("execute %s: no data rows", req.FileName)
	}
	if len(records) > repository.MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	run := &repository.ImportRun{
		UserID:             req.UserID,
		PortfolioAccountID: req.PortfolioAccountID,
		FileName:           req.FileName,
		TotalRows:          len(records),
	}
	if err := s.repo.CreateImportRun(ctx, run); err != nil {
		return nil, err
	}

	summary := &ImportSummary{RunID: run.ID, TotalRows: len(records)}

	trades, rowErrs := s.enricher.Enrich(ctx, records)
	summary.Errors = append(summary.Errors, rowErrs...)

	resolved, assetErrs := s.resolver.Resolve(ctx, req.PortfolioAccountID, req.UserID, candidates(trades), req.CreateMissingAssets)
	if len(assetErrs) > 0 {
		trades = dropUnresolved(trades, resolved, assetErrs, summary)
	}

	fresh, duplicates, err := s.partitionDuplicates(ctx, req, trades)
	if err != nil {
		s.finishRun(ctx, run.ID, "failed", summary)
		return nil, err
	}
	summary.Duplicates = len(duplicates)
	if !req.SkipDuplicates {
		for _, d := range duplicates {
			summary.Errors = append(summary.Errors, enricher.RowError{
				Row:     d.RowNumber,
				Code:    enricher.CodeDuplicate,
				Message: fmt.Sprintf("an identical %s transaction for %s is already recorded", d.Type, d.Ticker),
			})
		}
	}

	res, err := s.writer.Write(ctx, req.UserID, req.PortfolioAccountID, resolved, fresh, req.DefaultCurrency)
	if err != nil {
		s.finishRun(ctx, run.ID, "failed", summary)
		return nil, err
	}
	summary.Imported = res.Imported
	summary.ChunkCount = res.ChunkCount
	summary.ImportedTransactionIDs = res.TransactionIDs
	summary.Errors = append(summary.Errors, res.RowErrors...)

	summary.NetInvestedUSD = netInvested(fresh, res.RowErrors).Display()

	summary.Status = "succeeded"
	if len(summary.Errors) > 0 {
		summary.Status = "completed_with_errors"
	}
	s.finishRun(ctx, run.ID, summary.Status, summary)
	s.archiveRun(req, run.ID, fresh)

	for _, e := range summary.Errors {
		s.metrics.CountRowError(e.Code)
	}
	s.metrics.CountImport(summary.Status, summary.Imported, summary.Duplicates)
	span.SetAttributes(
		attribute.Int("import.rows", summary.TotalRows),
		attribute.Int("import.imported", summary.Imported),
		attribute.Int("import.duplicates", summary.Duplicates),
		attribute.Int("import.errors", len(summary.Errors)),
	)
	s.logger.Info("import executed",
		slog.String("file", req.FileName),
		slog.String("status", summary.Status),
		slog.Int("imported", summary.Imported),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("errors", len(summary.Errors)))

	if err := s.notifier.SendImportSummary(req.NotifyEmail, notify.ImportSummaryMail{
		FileName:   req.FileName,
		Imported:   summary.Imported,
		Duplicates: summary.Duplicates,
		Errors:     len(summary.Errors),
		Status:     summary.Status,
	}); err != nil {
		s.logger.Warn("summary email failed", slog.String("error", err.Error()))
	}
	return summary, nil
}

func (s *Service) partitionDuplicates(ctx context.Context, req ExecuteRequest, trades []enricher.Trade) (fresh, duplicates []enricher.Trade, err error) {
	rows := make([]dedup.Row, 0, len(trades))
	byIndex := make(map[int]enricher.Trade, len(trades))
	for i, t := range trades {
		byIndex[i] = t
		rows = append(rows, dedup.Row{
			Index:       i,
			Ticker:      t.Ticker,
			Type:        t.Type,
			Amount:      t.Amount,
			Price:       t.Price,
			Date:        t.Date,
			DateHasTime: t.DateHasTime,
		})
	}
	result, err := s.dedup.Detect(ctx, req.UserID, req.PortfolioAccountID, rows)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range result.Fresh {
		fresh = append(fresh, byIndex[r.Index])
	}
	for _, r := range result.Duplicates {
		duplicates = append(duplicates, byIndex[r.Index])
	}
	return fresh, duplicates, nil
}

// archiveRun keeps the normalized shape of what was just imported. Best
// effort: a failed archive write never fails the import.
func (s *Service) archiveRun(req ExecuteRequest, runID uuid.UUID, trades []enricher.Trade) {
	if s.archive == nil || len(trades) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := fileio.WriteNormalizedCSV(&buf, trades); err != nil {
		s.logger.Warn("archive encode failed", slog.String("error", err.Error()))
		return
	}
	if _, err := s.archive.Save(req.UserID, runID, req.FileName, &buf); err != nil {
		s.logger.Warn("archive write failed",
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) finishRun(ctx context.Context, runID uuid.UUID, status string, summary *ImportSummary) {
	err := s.repo.FinishImportRun(ctx, runID, status, summary.Imported, summary.Duplicates, len(summary.Errors))
	if err != nil {
		s.logger.Warn("finish import run failed",
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()))
	}
}

// ExtractRecords applies the confirmed mappings to the grid, producing one
// field map per data row. Row numbers are 1-based file positions.
func ExtractRecords(grid *fileio.Grid, mappings []detector.ColumnMapping) []enricher.RawRecord {
	if grid == nil {
		return nil
	}
	start := 0
	if grid.HasHeader {
		start = 1
	}

	typeFromSign := false
	for _, m := range mappings {
		if m.TargetField == catalog.FieldType && m.Transformation == detector.TransformDeriveFromQuantitySign {
			typeFromSign = true
		}
	}

	var records []enricher.RawRecord
	for i := start; i < len(grid.Rows); i++ {
		row := grid.Rows[i]
		fields := make(map[catalog.TargetField]string, len(mappings))
		for _, m := range mappings {
			if m.Transformation == detector.TransformDeriveFromQuantitySign {
				continue
			}
			if m.SourceColumn >= 0 && m.SourceColumn < len(row) {
				fields[m.TargetField] = row[m.SourceColumn]
			}
		}
		if fields[catalog.FieldTicker] != "" {
			fields[catalog.FieldTicker] = tickers.Normalize(fields[catalog.FieldTicker])
		}
		records = append(records, enricher.RawRecord{
			RowNumber:    i + 1,
			Fields:       fields,
			TypeFromSign: typeFromSign,
		})
	}
	return records
}

// candidates groups enriched trades by ticker for asset resolution.
func candidates(trades []enricher.Trade) []assets.Candidate {
	index := make(map[string]int)
	var out []assets.Candidate
	for _, t := range trades {
		i, ok := index[t.Ticker]
		if !ok {
			i = len(out)
			index[t.Ticker] = i
			out = append(out, assets.Candidate{
				Ticker: t.Ticker,
				Name:   t.Description,
				Market: t.Market,
			})
		}
		out[i].Trades = append(out[i].Trades, assets.Trade{
			Type:   t.Type,
			Amount: t.Amount,
			Price:  t.Price,
			Date:   t.Date,
		})
	}
	return out
}

func dropUnresolved(trades []enricher.Trade, resolved map[string]*repository.Asset, assetErrs map[string]error, summary *ImportSummary) []enricher.Trade {
	kept := trades[:0]
	for _, t := range trades {
		if _, ok := resolved[t.Ticker]; ok {
			kept = append(kept, t)
			continue
		}
		summary.Errors = append(summary.Errors, enricher.RowError{
			Row:     t.RowNumber,
			Code:    enricher.CodeAssetNotFound,
			Message: fmt.Sprintf("ticker %s: %v", t.Ticker, assetErrs[t.Ticker]),
		})
	}
	return kept
}

// netInvested totals the USD notional the import moved: buys add, sells
// subtract, rows from failed chunks are excluded.
func netInvested(trades []enricher.Trade, failed []enricher.RowError) money.Amount {
	failedRows := make(map[int]bool, len(failed))
	for _, e := range failed {
		failedRows[e.Row] = true
	}
	total := money.Zero("USD")
	for _, t := range trades {
		if failedRows[t.RowNumber] {
			continue
		}
		notional := money.Notional(t.Amount, t.Price, t.Commission, t.Currency).
			Convert(t.DollarRate, "USD")
		if t.Type == "sell" {
			notional = notional.Neg()
		}
		if sum, err := total.Add(notional); err == nil {
			total = sum
		}
	}
	return total
}

func mappedColumn(mappings []detector.ColumnMapping, field catalog.TargetField) (int, bool) {
	for _, m := range mappings {
		if m.TargetField == field && m.Transformation == "" {
			return m.SourceColumn, true
		}
	}
	return 0, false
}

func columnValues(rows [][]string, col int, hasHeader bool) []string {
	start := 0
	if hasHeader {
		start = 1
	}
	var out []string
	for i := start; i < len(rows); i++ {
		if col < len(rows[i]) {
			out = append(out, rows[i][col])
		}
	}
	return out
}

func dataRowCount(grid *fileio.Grid) int {
	n := len(grid.Rows)
	if grid.HasHeader && n > 0 {
		n--
	}
	return n
}
