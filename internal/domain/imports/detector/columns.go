package detector

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

const (
	headerPhaseConfidence  = 0.9
	contentPhaseConfidence = 0.7
	contextPhaseConfidence = 0.5

	// contentMatchRatio is the fraction of non-empty sampled values that
	// must match a content pattern before the field is accepted.
	contentMatchRatio = 0.7

	contentSampleLimit = 20
)

// ColumnDetector runs the generic header → content → context cascade for
// files no broker signature recognized. Each phase is a pure function over
// the sample rows plus an exclusion set of already-claimed columns/fields.
type ColumnDetector struct {
	vocab *catalog.TypeVocabulary
}

// NewColumnDetector builds a detector with a fresh type-vocabulary matcher.
func NewColumnDetector() *ColumnDetector {
	return &ColumnDetector{vocab: catalog.NewTypeVocabulary()}
}

// Detect infers mappings for the sampled rows. Later phases only consider
// columns and fields the earlier phases left unclaimed.
func (d *ColumnDetector) Detect(sampleRows [][]string, hasHeader bool) []ColumnMapping {
	if len(sampleRows) == 0 {
		return nil
	}

	width := 0
	for _, row := range sampleRows {
		if len(row) > width {
			width = len(row)
		}
	}

	ex := newExclusions(width)
	var mappings []ColumnMapping

	if hasHeader {
		mappings = append(mappings, d.headerPhase(sampleRows[0], sampleRows, ex)...)
	}
	mappings = append(mappings, d.contentPhase(sampleRows, hasHeader, ex)...)
	mappings = append(mappings, d.contextPhase(sampleRows, hasHeader, ex)...)

	return mappings
}

// exclusions tracks claimed columns and filled fields across phases.
type exclusions struct {
	columns map[int]bool
	fields  map[catalog.TargetField]bool
	width   int
}

func newExclusions(width int) *exclusions {
	return &exclusions{
		columns: make(map[int]bool),
		fields:  make(map[catalog.TargetField]bool),
		width:   width,
	}
}

func (e *exclusions) claim(col int, field catalog.TargetField) {
	e.columns[col] = true
	e.fields[field] = true
}

func (e *exclusions) open(col int, field catalog.TargetField) bool {
	return !e.columns[col] && !e.fields[field]
}

// headerPhase matches header strings against the per-field regex lists.
// First matching field wins per column.
func (d *ColumnDetector) headerPhase(headers []string, sampleRows [][]string, ex *exclusions) []ColumnMapping {
	var out []ColumnMapping
	for col, raw := range headers {
		header := trimCell(raw)
		if header == "" || ex.columns[col] {
			continue
		}
		for _, entry := range catalog.HeaderPatterns {
			if ex.fields[entry.Field] {
				continue
			}
			if matchAny(entry.Patterns, header) {
				ex.claim(col, entry.Field)
				out = append(out, ColumnMapping{
					SourceColumn:    col,
					SourceHeader:    header,
					TargetField:     entry.Field,
					Confidence:      headerPhaseConfidence,
					DetectionMethod: catalog.MethodHeader,
					SampleValues:    collectSamples(sampleRows, col, true, maxSampleValues),
				})
				break
			}
		}
	}
	return out
}

// contentPhase classifies still-unmapped columns by what their values look
// like. A field is accepted only when the match ratio clears
// contentMatchRatio; the mapping confidence is scaled by that ratio.
func (d *ColumnDetector) contentPhase(sampleRows [][]string, hasHeader bool, ex *exclusions) []ColumnMapping {
	var out []ColumnMapping

	// Numeric columns are held back and disambiguated together: amount,
	// price, and commission all look like numbers until compared.
	type numericCandidate struct {
		col     int
		ratio   float64
		stats   numericStats
		samples []string
	}
	var numerics []numericCandidate

	for col := 0; col < ex.width; col++ {
		if ex.columns[col] {
			continue
		}
		samples := collectSamples(sampleRows, col, hasHeader, contentSampleLimit)
		if len(samples) == 0 {
			continue
		}

		if field, ratio, ok := d.classifyContent(samples, ex); ok {
			ex.claim(col, field)
			out = append(out, ColumnMapping{
				SourceColumn:    col,
				SourceHeader:    headerAt(sampleRows, col, hasHeader),
				TargetField:     field,
				Confidence:      contentPhaseConfidence * ratio,
				DetectionMethod: catalog.MethodContent,
				SampleValues:    limitSamples(samples),
			})
			continue
		}

		if ratio, stats, ok := numericProfile(samples); ok {
			numerics = append(numerics, numericCandidate{col: col, ratio: ratio, stats: stats, samples: samples})
		}
	}

	for _, nc := range numerics {
		field := disambiguateNumeric(nc.stats)
		if !ex.open(nc.col, field) {
			// Preferred numeric slot taken; fall through amount → price →
			// commission in that order.
			field = firstOpenNumericField(ex, nc.col)
			if field == "" {
				continue
			}
		}
		ex.claim(nc.col, field)
		out = append(out, ColumnMapping{
			SourceColumn:    nc.col,
			SourceHeader:    headerAt(sampleRows, nc.col, hasHeader),
			TargetField:     field,
			Confidence:      contentPhaseConfidence * nc.ratio,
			DetectionMethod: catalog.MethodContent,
			SampleValues:    limitSamples(nc.samples),
		})
	}

	return out
}

// classifyContent tries the non-numeric content signatures in decreasing
// precision order. Returns the matched field and its match ratio.
func (d *ColumnDetector) classifyContent(samples []string, ex *exclusions) (catalog.TargetField, float64, bool) {
	checks := []struct {
		field catalog.TargetField
		test  func(string) bool
	}{
		{catalog.FieldDate, isDateLike},
		{catalog.FieldType, d.vocab.Matches},
		{catalog.FieldCurrency, func(v string) bool { return catalog.CurrencyContentPattern.MatchString(strings.ToUpper(v)) }},
		{catalog.FieldTicker, func(v string) bool { return catalog.TickerContentPattern.MatchString(strings.ToUpper(v)) }},
	}

	for _, c := range checks {
		if ex.fields[c.field] {
			continue
		}
		matched := 0
		for _, v := range samples {
			if c.test(v) {
				matched++
			}
		}
		ratio := float64(matched) / float64(len(samples))
		if ratio >= contentMatchRatio {
			return c.field, ratio, true
		}
	}
	return "", 0, false
}

// contextPhase is the last resort: relaxed structural tests for required
// fields that are still missing.
func (d *ColumnDetector) contextPhase(sampleRows [][]string, hasHeader bool, ex *exclusions) []ColumnMapping {
	var out []ColumnMapping
	for _, field := range catalog.RequiredFields {
		if ex.fields[field] {
			continue
		}
		for col := 0; col < ex.width; col++ {
			if ex.columns[col] {
				continue
			}
			samples := collectSamples(sampleRows, col, hasHeader, contentSampleLimit)
			if len(samples) == 0 {
				continue
			}
			if !contextMatch(field, samples) {
				continue
			}
			ex.claim(col, field)
			out = append(out, ColumnMapping{
				SourceColumn:    col,
				SourceHeader:    headerAt(sampleRows, col, hasHeader),
				TargetField:     field,
				Confidence:      contextPhaseConfidence,
				DetectionMethod: catalog.MethodContext,
				SampleValues:    limitSamples(samples),
			})
			break
		}
	}
	return out
}

func contextMatch(field catalog.TargetField, samples []string) bool {
	switch field {
	case catalog.FieldType:
		// Exactly two distinct values is the shape of a buy/sell column.
		distinct := make(map[string]bool)
		for _, v := range samples {
			distinct[strings.ToLower(v)] = true
		}
		return len(distinct) == 2
	case catalog.FieldDate:
		hits := 0
		for _, v := range samples {
			if len(v) >= 8 && (strings.Contains(v, "/") || strings.Contains(v, "-")) {
				hits++
			}
		}
		return hits*2 >= len(samples)
	case catalog.FieldTicker:
		hits := 0
		for _, v := range samples {
			if len(v) <= 6 && v == strings.ToUpper(v) && v != "" {
				hits++
			}
		}
		return hits*2 >= len(samples)
	case catalog.FieldAmount, catalog.FieldPrice:
		hits := 0
		for _, v := range samples {
			if catalog.NumberContentPattern.MatchString(v) {
				hits++
			}
		}
		return hits*2 >= len(samples)
	}
	return false
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func isDateLike(v string) bool {
	for _, re := range catalog.DateContentPatterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

func headerAt(sampleRows [][]string, col int, hasHeader bool) string {
	if !hasHeader || len(sampleRows) == 0 || col >= len(sampleRows[0]) {
		return ""
	}
	return trimCell(sampleRows[0][col])
}

func limitSamples(samples []string) []string {
	if len(samples) > maxSampleValues {
		return samples[:maxSampleValues]
	}
	return samples
}
