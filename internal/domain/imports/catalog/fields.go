// Package catalog holds the static reference data consulted during import
// analysis: target field definitions, header/content patterns, known broker
// export signatures, and market metadata tables. It is pure data plus a few
// lookup helpers; all inference logic lives in the detector package.
package catalog

// TargetField is a semantic trading field a raw column can map to.
type TargetField string

const (
	FieldTicker      TargetField = "ticker"
	FieldType        TargetField = "type"
	FieldAmount      TargetField = "amount"
	FieldPrice       TargetField = "price"
	FieldDate        TargetField = "date"
	FieldCurrency    TargetField = "currency"
	FieldCommission  TargetField = "commission"
	FieldMarket      TargetField = "market"
	FieldTotal       TargetField = "total"
	FieldDescription TargetField = "description"
)

// RequiredFields are the fields an import cannot execute without.
var RequiredFields = []TargetField{
	FieldTicker,
	FieldType,
	FieldAmount,
	FieldPrice,
	FieldDate,
}

// IsRequired reports whether f is one of the five required fields.
func IsRequired(f TargetField) bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// DetectionMethod records how a column mapping was produced.
type DetectionMethod string

const (
	MethodHeader  DetectionMethod = "header"
	MethodContent DetectionMethod = "content"
	MethodContext DetectionMethod = "context"
	MethodBroker  DetectionMethod = "broker"
	MethodManual  DetectionMethod = "manual"
)

// TypeDerivation describes how a broker export encodes trade direction.
type TypeDerivation string

const (
	// DeriveExplicitColumn means the export carries a buy/sell column.
	DeriveExplicitColumn TypeDerivation = "explicit_column"
	// DeriveQuantitySign means direction is the sign of the quantity column.
	DeriveQuantitySign TypeDerivation = "quantity_sign"
)
