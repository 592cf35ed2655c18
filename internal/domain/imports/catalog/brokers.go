package catalog

import "regexp"

// BrokerSignature identifies a known broker export format. Signatures are
// reference data: adding a broker means adding a record here, never code.
type BrokerSignature struct {
	ID string

	// HeaderSets are alternative full header rows the broker is known to
	// emit. A set matches when at least 80% of its headers are present.
	HeaderSets [][]string

	// UniqueHeaders are headers exclusive to this broker; any one of them
	// present in the file identifies the broker outright.
	UniqueHeaders []string

	// FilenamePatterns match export file names when headers are absent.
	FilenamePatterns []*regexp.Regexp

	// ColumnMapping maps the broker's exact header strings to target fields.
	ColumnMapping map[string]TargetField

	// TypeDerivation tells the mapper how direction is encoded.
	TypeDerivation TypeDerivation

	DefaultCurrency string
	DateFormat      string
}

// Brokers is the signature table keyed by broker id.
var Brokers = map[string]BrokerSignature{
	"interactive_brokers": {
		ID: "interactive_brokers",
		HeaderSets: [][]string{
			{"Symbol", "Date/Time", "Quantity", "T. Price", "Proceeds", "Comm/Fee", "Currency"},
			{"Symbol", "Date/Time", "Quantity", "T. Price", "C. Price", "Proceeds", "Comm/Fee", "Basis", "Realized P/L", "Code"},
		},
		UniqueHeaders: []string{"T. Price", "Comm/Fee", "C. Price", "Realized P/L"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^U\d{7,8}_`),
			regexp.MustCompile(`(?i)activity.*statement`),
			regexp.MustCompile(`(?i)\bibkr\b`),
		},
		ColumnMapping: map[string]TargetField{
			"Symbol":    FieldTicker,
			"Date/Time": FieldDate,
			"Quantity":  FieldAmount,
			"T. Price":  FieldPrice,
			"Proceeds":  FieldTotal,
			"Comm/Fee":  FieldCommission,
			"Currency":  FieldCurrency,
		},
		TypeDerivation:  DeriveQuantitySign,
		DefaultCurrency: "USD",
		DateFormat:      "2006-01-02, 15:04:05",
	},

	"degiro": {
		ID: "degiro",
		HeaderSets: [][]string{
			{"Date", "Time", "Product", "ISIN", "Exchange", "Quantity", "Price", "Value", "Transaction costs", "Total"},
			{"Fecha", "Hora", "Producto", "ISIN", "Bolsa", "Cantidad", "Precio", "Valor", "Costes de transacción", "Total"},
		},
		UniqueHeaders: []string{"Transaction costs", "Costes de transacción"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)degiro`),
			regexp.MustCompile(`(?i)^Transactions\s*\d{4}`),
		},
		ColumnMapping: map[string]TargetField{
			"Date": FieldDate, "Fecha": FieldDate,
			"Product": FieldDescription, "Producto": FieldDescription,
			"ISIN":     FieldTicker,
			"Exchange": FieldMarket, "Bolsa": FieldMarket,
			"Quantity": FieldAmount, "Cantidad": FieldAmount,
			"Price": FieldPrice, "Precio": FieldPrice,
			"Transaction costs": FieldCommission, "Costes de transacción": FieldCommission,
			"Total": FieldTotal,
		},
		TypeDerivation:  DeriveQuantitySign,
		DefaultCurrency: "EUR",
		DateFormat:      "02-01-2006",
	},

	"trading212": {
		ID: "trading212",
		HeaderSets: [][]string{
			{"Action", "Time", "ISIN", "Ticker", "Name", "No. of shares", "Price / share", "Currency (Price / share)", "Total", "ID"},
		},
		UniqueHeaders: []string{"No. of shares", "Price / share", "Currency (Price / share)"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)trading\s*212`),
			regexp.MustCompile(`(?i)^from_\d{4}-\d{2}-\d{2}_to_`),
		},
		ColumnMapping: map[string]TargetField{
			"Action":                   FieldType,
			"Time":                     FieldDate,
			"Ticker":                   FieldTicker,
			"Name":                     FieldDescription,
			"No. of shares":            FieldAmount,
			"Price / share":            FieldPrice,
			"Currency (Price / share)": FieldCurrency,
			"Total":                    FieldTotal,
		},
		TypeDerivation:  DeriveExplicitColumn,
		DefaultCurrency: "USD",
		DateFormat:      "2006-01-02 15:04:05",
	},

	"etoro": {
		ID: "etoro",
		HeaderSets: [][]string{
			{"Date", "Type", "Details", "Position ID", "Amount", "Units", "Open Rate", "Realized Equity Change"},
		},
		UniqueHeaders: []string{"Position ID", "Open Rate", "Realized Equity Change"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)etoro`),
		},
		ColumnMapping: map[string]TargetField{
			"Date":      FieldDate,
			"Type":      FieldType,
			"Details":   FieldTicker,
			"Units":     FieldAmount,
			"Open Rate": FieldPrice,
			"Amount":    FieldTotal,
		},
		TypeDerivation:  DeriveExplicitColumn,
		DefaultCurrency: "USD",
		DateFormat:      "02/01/2006 15:04:05",
	},

	"schwab": {
		ID: "schwab",
		HeaderSets: [][]string{
			{"Date", "Action", "Symbol", "Description", "Quantity", "Price", "Fees & Comm", "Amount"},
		},
		UniqueHeaders: []string{"Fees & Comm"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)schwab`),
			regexp.MustCompile(`(?i)_Transactions_\d{8}`),
		},
		ColumnMapping: map[string]TargetField{
			"Date":        FieldDate,
			"Action":      FieldType,
			"Symbol":      FieldTicker,
			"Description": FieldDescription,
			"Quantity":    FieldAmount,
			"Price":       FieldPrice,
			"Fees & Comm": FieldCommission,
			"Amount":      FieldTotal,
		},
		TypeDerivation:  DeriveExplicitColumn,
		DefaultCurrency: "USD",
		DateFormat:      "01/02/2006",
	},

	"binance": {
		ID: "binance",
		HeaderSets: [][]string{
			{"Date(UTC)", "Pair", "Side", "Price", "Executed", "Amount", "Fee"},
		},
		UniqueHeaders: []string{"Date(UTC)", "Executed"},
		FilenamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)binance`),
			regexp.MustCompile(`(?i)export.*trade.*history`),
		},
		ColumnMapping: map[string]TargetField{
			"Date(UTC)": FieldDate,
			"Pair":      FieldTicker,
			"Side":      FieldType,
			"Price":     FieldPrice,
			"Executed":  FieldAmount,
			"Amount":    FieldTotal,
			"Fee":       FieldCommission,
		},
		TypeDerivation:  DeriveExplicitColumn,
		DefaultCurrency: "USD",
		DateFormat:      "2006-01-02 15:04:05",
	},
}

// BrokerIDs returns the ids in the signature table, for diagnostics.
func BrokerIDs() []string {
	ids := make([]string, 0, len(Brokers))
	for id := range Brokers {
		ids = append(ids, id)
	}
	return ids
}
