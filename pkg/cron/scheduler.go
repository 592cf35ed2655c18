// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

// Scheduler runs the cache janitor: quote and FX rate caches are purged
// on a schedule so stale market data never outlives the day it was
// fetched for, and the provider breaker gets a fresh start.
type Scheduler struct {
	cron     *cron.Cron
	quotes   *marketdata.QuoteCache
	rates    *marketdata.RateCache
	breaker  interface{ ResetBreaker() }
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(quotes *marketdata.QuoteCache, rates *marketdata.RateCache, client interface{ ResetBreaker() }, schedule string, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		quotes:   quotes,
		rates:    rates,
		breaker:  client,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepCaches)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the cache sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepCaches()
}

func (s *Scheduler) sweepCaches() {
	quoteCount := s.quotes.Len()
	rateCount := s.rates.Len()
	s.quotes.Purge()
	s.rates.Purge()
	if s.breaker != nil {
		s.breaker.ResetBreaker()
	}

	s.logger.Info("market data caches swept",
		slog.Int("quotes_evicted", quoteCount),
		slog.Int("rates_evicted", rateCount),
	)
}
