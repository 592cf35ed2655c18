package tickers

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

// quoteBatchSize bounds one external lookup; bigger ticker sets are chunked.
const quoteBatchSize = 100

// ValidationDetail is the per-ticker outcome.
type ValidationDetail struct {
	OriginalTicker   string `json:"original_ticker"`
	NormalizedTicker string `json:"normalized_ticker"`
	IsValid          bool   `json:"is_valid"`
	// IsUnverified means the lookup itself failed; distinct from "not
	// found" so scoring does not punish tickers nobody could check.
	IsUnverified bool   `json:"is_unverified"`
	AssetType    string `json:"asset_type,omitempty"`
	Market       string `json:"market,omitempty"`
	Currency     string `json:"currency,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// ValidationSummary aggregates a whole batch. Every ticker lands in exactly
// one of valid/invalid/unverified.
type ValidationSummary struct {
	Total          int                         `json:"total"`
	Valid          int                         `json:"valid"`
	Invalid        int                         `json:"invalid"`
	Unverified     int                         `json:"unverified"`
	InvalidTickers []string                    `json:"invalid_tickers,omitempty"`
	Suggestions    map[string]string           `json:"suggestions,omitempty"`
	Details        map[string]ValidationDetail `json:"details"`
}

// Validator checks tickers against the market-data provider in as few
// batched calls as possible.
type Validator struct {
	client marketdata.Client
	quotes *marketdata.QuoteCache
	index  *SymbolIndex
	logger *slog.Logger
}

// NewValidator wires a validator over the shared client, cache, and index.
func NewValidator(client marketdata.Client, quotes *marketdata.QuoteCache, index *SymbolIndex, logger *slog.Logger) *Validator {
	return &Validator{client: client, quotes: quotes, index: index, logger: logger}
}

// Normalize canonicalizes a raw ticker string: uppercase, trimmed, leading
// "$" and trailing "." stripped. Idempotent.
func Normalize(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	t = strings.TrimPrefix(t, "$")
	t = strings.TrimSuffix(t, ".")
	return strings.TrimSpace(t)
}

// Validate resolves the given tickers. Input is normalized and de-duplicated
// first; unresolved tickers get a best-effort correction suggestion.
func (v *Validator) Validate(ctx context.Context, rawTickers []string) *ValidationSummary {
	summary := &ValidationSummary{
		Suggestions: make(map[string]string),
		Details:     make(map[string]ValidationDetail),
	}

	// Normalize and de-dupe, keeping first-seen order for stable output.
	seen := make(map[string]bool)
	var unique []string
	for _, raw := range rawTickers {
		n := Normalize(raw)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	summary.Total = len(unique)
	if summary.Total == 0 {
		return summary
	}

	// Serve from cache first; only miss tickers go to the provider.
	resolved := make(map[string]marketdata.Quote)
	var misses []string
	for _, t := range unique {
		if q, ok := v.quotes.Get(t); ok {
			resolved[t] = q
		} else {
			misses = append(misses, t)
		}
	}

	unverified := make(map[string]bool)
	if v.client == nil {
		// Offline mode: nothing can be checked, nothing is punished.
		for _, t := range misses {
			unverified[t] = true
		}
		misses = nil
	}
	for start := 0; start < len(misses); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]

		quotes, err := v.client.Quotes(ctx, chunk)
		if err != nil {
			// The lookup failed, not the tickers: mark the whole chunk
			// unverified and keep going.
			v.logger.Warn("ticker validation lookup failed", "tickers", len(chunk), "error", err)
			for _, t := range chunk {
				unverified[t] = true
			}
			continue
		}
		for _, q := range quotes {
			key := strings.ToUpper(q.Symbol)
			resolved[key] = q
			v.quotes.Put(q)
			if v.index != nil {
				if err := v.index.Add(q); err != nil {
					v.logger.Warn("failed to index symbol", "symbol", q.Symbol, "error", err)
				}
			}
		}
	}

	for _, t := range unique {
		detail := ValidationDetail{OriginalTicker: t, NormalizedTicker: t}

		switch {
		case unverified[t]:
			detail.IsUnverified = true
			summary.Unverified++
		default:
			if q, ok := resolved[t]; ok && strings.EqualFold(q.Symbol, t) {
				detail.IsValid = true
				detail.CompanyName = q.Name
				detail.AssetType = AssetTypeFromQuote(q.QuoteType)
				detail.Market = q.Exchange
				detail.Currency = q.Currency
				summary.Valid++
			} else {
				summary.Invalid++
				summary.InvalidTickers = append(summary.InvalidTickers, t)
				if s := v.suggest(t); s != "" {
					detail.Suggestion = s
					summary.Suggestions[t] = s
				}
			}
		}
		summary.Details[t] = detail
	}

	return summary
}

// suggest proposes a correction for an unresolved ticker: the static typo
// table first, then a narrow prefix search over known symbols ranked by
// edit distance.
func (v *Validator) suggest(ticker string) string {
	if fix, ok := catalog.CommonTickerTypos[ticker]; ok {
		return fix
	}
	if v.index == nil || len(ticker) < 2 {
		return ""
	}

	prefix := ticker[:2]
	candidates, err := v.index.SuggestPrefix(prefix, 10)
	if err != nil || len(candidates) == 0 {
		return ""
	}

	ranked := fuzzy.RankFindFold(ticker, candidates)
	if len(ranked) == 0 {
		// No subsequence match; fall back to the closest by distance.
		sort.Slice(candidates, func(i, j int) bool {
			return fuzzy.LevenshteinDistance(ticker, candidates[i]) < fuzzy.LevenshteinDistance(ticker, candidates[j])
		})
		if fuzzy.LevenshteinDistance(ticker, candidates[0]) <= 2 {
			return candidates[0]
		}
		return ""
	}
	sort.Sort(ranked)
	return ranked[0].Target
}

// AssetTypeFromQuote maps provider quote types onto the asset classes the
// ledger stores.
func AssetTypeFromQuote(quoteType string) string {
	switch strings.ToUpper(quoteType) {
	case "ETF":
		return "etf"
	case "CRYPTOCURRENCY", "CRYPTO":
		return "crypto"
	default:
		return "stock"
	}
}
