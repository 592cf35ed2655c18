package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/fileio"
	importservice "github.com/FACorreiaa/trade-ledger/internal/domain/imports/service"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

type analyzeCmd struct {
	file string
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "analyze a broker export file" }
func (*analyzeCmd) Usage() string {
	return `analyze -file <path>

  Parses the file, detects the broker format or infers column mappings,
  and prints the full analysis report as JSON.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Broker export file to analyze (required)")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func readGrid(file string) (*fileio.Grid, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fileio.Read(f, file)
}

// offlineService builds the pipeline without a database or market data
// provider. Good enough for analysis; execution needs the full wiring.
func offlineService(logger *slog.Logger) *importservice.Service {
	validator := tickers.NewValidator(nil, marketdata.NewQuoteCache(), nil, logger)
	return importservice.New(nil, validator, nil, logger)
}
