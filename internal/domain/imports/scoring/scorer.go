// Package scoring turns detection and validation results into a single
// 0-1 readiness score plus operator-facing warnings and suggestions.
package scoring

import (
	"fmt"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/detector"
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/tickers"
)

// Component weights of the composite score.
const (
	weightRequiredCoverage = 0.40
	weightMappingQuality   = 0.30
	weightTickerValidation = 0.20
	weightBrokerDetection  = 0.10

	brokerDetectionBonus = 0.05

	lowConfidenceThreshold = 0.6

	// Confidence tiers.
	tierHigh   = 0.8
	tierMedium = 0.6
)

// Readiness is the verdict on whether an analysis can execute unattended.
type Readiness struct {
	CanProceed            bool   `json:"can_proceed"`
	RequiresManualMapping bool   `json:"requires_manual_mapping"`
	Confidence            string `json:"confidence"` // low, medium, high
}

// Score combines mapping quality, required-field coverage, ticker
// validation, and broker detection into one 0-1 value. Hard penalties for
// missing ticker/date mappings are applied after the weighted sum.
func Score(
	mappings []detector.ColumnMapping,
	missing []catalog.TargetField,
	validation *tickers.ValidationSummary,
	detectedBroker string,
) float64 {
	score := weightRequiredCoverage*requiredCoverage(mappings) +
		weightMappingQuality*mappingQuality(mappings) +
		weightTickerValidation*tickerScore(validation) +
		weightBrokerDetection*brokerScore(detectedBroker)

	if detectedBroker != "" {
		score += brokerDetectionBonus
	}

	mapped := fieldIndex(mappings)
	if _, ok := mapped[catalog.FieldTicker]; !ok {
		score *= 0.3
	}
	if _, ok := mapped[catalog.FieldDate]; !ok {
		score *= 0.5
	}

	for _, m := range mappings {
		if catalog.IsRequired(m.TargetField) && m.Confidence < lowConfidenceThreshold {
			score *= 0.9
		}
	}

	if validation != nil && validation.Valid+validation.Invalid > 0 {
		invalidRatio := float64(validation.Invalid) / float64(validation.Valid+validation.Invalid)
		if invalidRatio > 0.3 {
			score *= 1 - invalidRatio*0.5
		}
	}

	return clamp01(score)
}

// Feedback produces the warnings and suggestions shown to the operator
// alongside the score.
func Feedback(
	mappings []detector.ColumnMapping,
	missing []catalog.TargetField,
	validation *tickers.ValidationSummary,
	detectedBroker string,
) (warnings, suggestions []string) {
	for _, f := range missing {
		warnings = append(warnings, fmt.Sprintf("required field %q could not be mapped to any column", f))
	}
	if len(missing) > 0 {
		suggestions = append(suggestions, "map the missing fields manually before importing")
	}

	for _, m := range mappings {
		if catalog.IsRequired(m.TargetField) && m.Confidence < lowConfidenceThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"low confidence (%.2f) mapping column %d to %q via %s detection",
				m.Confidence, m.SourceColumn, m.TargetField, m.DetectionMethod))
		}
	}

	if detectedBroker == "" {
		suggestions = append(suggestions, "file did not match any known broker format; review the inferred mappings")
	}

	if validation != nil {
		if validation.Unverified > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%d ticker(s) could not be verified because the lookup failed; they are not counted as invalid",
				validation.Unverified))
		}
		if validation.Invalid > 0 {
			warnings = append(warnings, fmt.Sprintf("%d ticker(s) were not found in market data", validation.Invalid))
			if len(validation.Suggestions) > 0 {
				suggestions = append(suggestions, "apply the suggested ticker corrections and re-run the analysis")
			}
		}
	}

	return warnings, suggestions
}

// EvaluateReadiness applies the proceed gate: overall confidence at or
// above the medium tier and no missing required field.
func EvaluateReadiness(score float64, missing []catalog.TargetField) Readiness {
	tier := "low"
	switch {
	case score >= tierHigh:
		tier = "high"
	case score >= tierMedium:
		tier = "medium"
	}

	canProceed := score >= tierMedium && len(missing) == 0
	return Readiness{
		CanProceed:            canProceed,
		RequiresManualMapping: !canProceed,
		Confidence:            tier,
	}
}

// requiredCoverage blends the fraction of required fields mapped (70%)
// with the average confidence of those mappings (30%).
func requiredCoverage(mappings []detector.ColumnMapping) float64 {
	mapped := fieldIndex(mappings)
	covered := 0
	confSum := 0.0
	for _, f := range catalog.RequiredFields {
		if m, ok := mapped[f]; ok {
			covered++
			confSum += m.Confidence
		}
	}
	if covered == 0 {
		return 0
	}
	coverage := float64(covered) / float64(len(catalog.RequiredFields))
	avgConf := confSum / float64(covered)
	return coverage*0.7 + avgConf*0.3
}

// mappingQuality is the confidence-weighted average across all mappings,
// with required fields counted twice.
func mappingQuality(mappings []detector.ColumnMapping) float64 {
	if len(mappings) == 0 {
		return 0
	}
	sum, weight := 0.0, 0.0
	for _, m := range mappings {
		w := 1.0
		if catalog.IsRequired(m.TargetField) {
			w = 2.0
		}
		sum += m.Confidence * w
		weight += w
	}
	return sum / weight
}

// tickerScore is the valid/total ratio, halved again below 50% so a mostly
// invalid batch is punished more than linearly. Unverified tickers are
// excluded from the denominator entirely.
func tickerScore(v *tickers.ValidationSummary) float64 {
	if v == nil || v.Total == 0 {
		// Nothing validated: neutral rather than punitive.
		return 0.5
	}
	checked := v.Valid + v.Invalid
	if checked == 0 {
		return 0.5
	}
	ratio := float64(v.Valid) / float64(checked)
	if ratio < 0.5 {
		ratio *= 0.5
	}
	return ratio
}

func brokerScore(detected string) float64 {
	if detected != "" {
		return 1.0
	}
	return 0
}

func fieldIndex(mappings []detector.ColumnMapping) map[catalog.TargetField]detector.ColumnMapping {
	idx := make(map[catalog.TargetField]detector.ColumnMapping, len(mappings))
	for _, m := range mappings {
		if _, ok := idx[m.TargetField]; !ok {
			idx[m.TargetField] = m
		}
	}
	return idx
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
