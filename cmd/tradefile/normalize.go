package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/fileio"
	importservice "github.com/FACorreiaa/trade-ledger/internal/domain/imports/service"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

type normalizeCmd struct {
	file     string
	currency string
}

func (*normalizeCmd) Name() string     { return "normalize" }
func (*normalizeCmd) Synopsis() string { return "print the typed trades an import would persist" }
func (*normalizeCmd) Usage() string {
	return `normalize -file <path> [-currency <code>]

  Analyzes the file, applies the inferred mappings, and prints the
  enriched trades as a normalized CSV. A dry run: nothing is written
  to any store, and FX rates come from the static fallback table.
`
}

func (c *normalizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Broker export file to normalize (required)")
	f.StringVar(&c.currency, "currency", "USD", "Default currency for rows without one")
}

func (c *normalizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required.")
		return subcommands.ExitUsageError
	}

	grid, err := readGrid(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := offlineService(logger)

	report, err := svc.Analyze(ctx, filepath.Base(c.file), grid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analyzing %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}
	if len(report.MissingRequired) > 0 {
		fmt.Fprintf(os.Stderr, "Error: required fields missing: %v\n", report.MissingRequired)
		return subcommands.ExitFailure
	}

	records := importservice.ExtractRecords(grid, report.Mappings)
	enr := enricher.New(nil, marketdata.NewRateCache(), c.currency, logger)
	trades, rowErrs := enr.Enrich(ctx, records)

	for _, e := range rowErrs {
		fmt.Fprintf(os.Stderr, "skipped %v\n", e)
	}
	if err := fileio.WriteNormalizedCSV(os.Stdout, trades); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
