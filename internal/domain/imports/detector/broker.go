package detector

import (
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

// brokerMappingConfidence is the confidence assigned to mappings taken from
// a recognized broker's fixed column table.
const brokerMappingConfidence = 0.95

// headerSetMatchRatio is the fraction of a candidate header set that must be
// present for a header-set match.
const headerSetMatchRatio = 0.8

// DetectBrokerFormat identifies a known broker export from its headers
// and/or filename. Detection signals are tried in strict priority order:
// unique headers first (broker-exclusive by construction), then header-set
// coverage, then filename patterns. Returns "" when nothing matches.
func DetectBrokerFormat(headers []string, filename string) string {
	if len(headers) > 0 {
		trimmed := make([]string, len(headers))
		lowered := make(map[string]bool, len(headers))
		for i, h := range headers {
			trimmed[i] = trimCell(h)
			lowered[strings.ToLower(trimmed[i])] = true
		}

		// Unique headers are checked verbatim: brokers pick these exactly
		// because no other export carries them.
		for _, id := range brokerOrder() {
			sig := catalog.Brokers[id]
			for _, uh := range sig.UniqueHeaders {
				for _, h := range trimmed {
					if h == uh {
						return id
					}
				}
			}
		}

		for _, id := range brokerOrder() {
			sig := catalog.Brokers[id]
			for _, set := range sig.HeaderSets {
				if len(set) == 0 {
					continue
				}
				matched := 0
				for _, want := range set {
					if lowered[strings.ToLower(want)] {
						matched++
					}
				}
				if float64(matched)/float64(len(set)) >= headerSetMatchRatio {
					return id
				}
			}
		}
	}

	if filename != "" {
		base := filepath.Base(filename)
		for _, id := range brokerOrder() {
			sig := catalog.Brokers[id]
			for _, re := range sig.FilenamePatterns {
				if re.MatchString(base) {
					return id
				}
			}
		}
	}

	return ""
}

// BrokerMappings emits one ColumnMapping per header recognized by the
// broker's fixed column table. When the broker encodes direction via signed
// quantity, a synthesized type mapping pointing at the quantity column is
// appended so downstream phases see the required field as covered.
func BrokerMappings(brokerID string, sampleRows [][]string, hasHeader bool) []ColumnMapping {
	sig, ok := catalog.Brokers[brokerID]
	if !ok || len(sampleRows) == 0 || !hasHeader {
		return nil
	}

	headers := sampleRows[0]
	mappings := make([]ColumnMapping, 0, len(headers))
	claimed := make(map[catalog.TargetField]bool)
	quantityCol := -1

	for col, raw := range headers {
		header := trimCell(raw)
		field, ok := sig.ColumnMapping[header]
		if !ok || claimed[field] {
			continue
		}
		claimed[field] = true
		if field == catalog.FieldAmount {
			quantityCol = col
		}
		mappings = append(mappings, ColumnMapping{
			SourceColumn:    col,
			SourceHeader:    header,
			TargetField:     field,
			Confidence:      brokerMappingConfidence,
			DetectionMethod: catalog.MethodBroker,
			SampleValues:    collectSamples(sampleRows, col, true, maxSampleValues),
		})
	}

	if sig.TypeDerivation == catalog.DeriveQuantitySign && !claimed[catalog.FieldType] && quantityCol >= 0 {
		mappings = append(mappings, ColumnMapping{
			SourceColumn:    quantityCol,
			SourceHeader:    trimCell(headers[quantityCol]),
			TargetField:     catalog.FieldType,
			Confidence:      brokerMappingConfidence,
			DetectionMethod: catalog.MethodBroker,
			Transformation:  TransformDeriveFromQuantitySign,
			DerivedFrom:     catalog.FieldAmount,
			SampleValues:    collectSamples(sampleRows, quantityCol, true, maxSampleValues),
		})
	}

	return mappings
}

// brokerOrder returns broker ids in a stable order so detection is
// deterministic across runs despite the table being a map.
func brokerOrder() []string {
	return []string{
		"interactive_brokers",
		"trading212",
		"degiro",
		"etoro",
		"schwab",
		"binance",
	}
}
