// Package detector infers column-to-field mappings for broker trade files.
// Known broker exports are recognized from their header/filename signatures;
// everything else goes through a cascade of header, content, and context
// heuristics over the sampled rows.
package detector

import (
	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

// ColumnMapping binds one source column to one semantic trading field.
type ColumnMapping struct {
	SourceColumn    int                     `json:"source_column"`
	SourceHeader    string                  `json:"source_header"`
	TargetField     catalog.TargetField     `json:"target_field"`
	Confidence      float64                 `json:"confidence"`
	DetectionMethod catalog.DetectionMethod `json:"detection_method"`
	SampleValues    []string                `json:"sample_values,omitempty"`
	Transformation  string                  `json:"transformation,omitempty"`
	DerivedFrom     catalog.TargetField     `json:"derived_from,omitempty"`
}

// TransformDeriveFromQuantitySign marks a synthesized type mapping whose
// value comes from the sign of the quantity column rather than a cell.
const TransformDeriveFromQuantitySign = "deriveFromQuantitySign"

const maxSampleValues = 5

// MissingRequiredFields returns the required fields not covered by mappings.
func MissingRequiredFields(mappings []ColumnMapping) []catalog.TargetField {
	have := make(map[catalog.TargetField]bool, len(mappings))
	for _, m := range mappings {
		have[m.TargetField] = true
	}
	var missing []catalog.TargetField
	for _, f := range catalog.RequiredFields {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// UnmappedColumns returns the column indices not claimed by any mapping.
func UnmappedColumns(mappings []ColumnMapping, width int) []int {
	claimed := make(map[int]bool, len(mappings))
	for _, m := range mappings {
		claimed[m.SourceColumn] = true
	}
	var out []int
	for i := 0; i < width; i++ {
		if !claimed[i] {
			out = append(out, i)
		}
	}
	return out
}

// collectSamples returns up to limit non-empty trimmed values of a column,
// skipping the header row when present.
func collectSamples(rows [][]string, col int, hasHeader bool, limit int) []string {
	start := 0
	if hasHeader {
		start = 1
	}
	var out []string
	for i := start; i < len(rows) && len(out) < limit; i++ {
		row := rows[i]
		if col >= len(row) {
			continue
		}
		v := trimCell(row[col])
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// trimCell trims whitespace plus the BOM and NBSP characters that show up
// in real broker exports.
func trimCell(s string) string {
	return catalog.CleanCell(s)
}
