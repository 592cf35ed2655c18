package detector

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

// numericStats summarizes a purely numeric column for the amount vs. price
// vs. commission disambiguation heuristic.
type numericStats struct {
	count        int
	integerCount int
	negatives    int
	avgAbs       float64
	maxAbs       float64
	decimals     int // values carrying a fractional part
}

// numericProfile parses the samples as numbers. Returns the match ratio and
// the accumulated stats; ok is false when the column is not mostly numeric.
func numericProfile(samples []string) (float64, numericStats, bool) {
	var stats numericStats
	sumAbs := 0.0

	for _, raw := range samples {
		d, ok := parseLooseNumber(raw)
		if !ok {
			continue
		}
		stats.count++
		abs, _ := d.Abs().Float64()
		sumAbs += abs
		if abs > stats.maxAbs {
			stats.maxAbs = abs
		}
		if d.IsNegative() {
			stats.negatives++
		}
		if d.Equal(d.Truncate(0)) {
			stats.integerCount++
		} else {
			stats.decimals++
		}
	}

	if stats.count == 0 {
		return 0, stats, false
	}
	ratio := float64(stats.count) / float64(len(samples))
	if ratio < contentMatchRatio {
		return ratio, stats, false
	}
	stats.avgAbs = sumAbs / float64(stats.count)
	return ratio, stats, true
}

// disambiguateNumeric picks the most plausible field for a numeric column:
// small always-positive values look like commissions, mostly-integer values
// like share counts, decimal-heavy larger values like prices. Amount is the
// default when the shape is ambiguous.
func disambiguateNumeric(stats numericStats) catalog.TargetField {
	if stats.negatives == 0 && stats.maxAbs < 50 && stats.avgAbs < 20 && stats.decimals > 0 {
		return catalog.FieldCommission
	}
	if stats.integerCount*10 >= stats.count*8 {
		return catalog.FieldAmount
	}
	if stats.decimals*2 >= stats.count && stats.avgAbs >= 1 {
		return catalog.FieldPrice
	}
	return catalog.FieldAmount
}

// firstOpenNumericField returns the first numeric field still unclaimed,
// preferring amount, then price, then commission. Empty when all are taken.
func firstOpenNumericField(ex *exclusions, col int) catalog.TargetField {
	for _, f := range []catalog.TargetField{catalog.FieldAmount, catalog.FieldPrice, catalog.FieldCommission} {
		if ex.open(col, f) {
			return f
		}
	}
	return ""
}

// parseLooseNumber is the shared loose parser from catalog; a local name
// keeps the heuristics above readable.
func parseLooseNumber(raw string) (decimal.Decimal, bool) {
	return catalog.ParseNumber(raw)
}
