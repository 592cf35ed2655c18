package catalog

import "strings"

// MarketCurrencies maps exchange codes to their trading currency. Used when
// creating assets whose quote response carries an exchange but no currency.
var MarketCurrencies = map[string]string{
	"NASDAQ": "USD",
	"NYSE":   "USD",
	"NMS":    "USD",
	"NYQ":    "USD",
	"AMEX":   "USD",
	"BATS":   "USD",
	"LSE":    "GBP",
	"LON":    "GBP",
	"XETRA":  "EUR",
	"GER":    "EUR",
	"FRA":    "EUR",
	"PAR":    "EUR",
	"AMS":    "EUR",
	"MCE":    "EUR",
	"MIL":    "EUR",
	"TSE":    "CAD",
	"TOR":    "CAD",
	"BVC":    "COP",
	"B3":     "BRL",
	"SAO":    "BRL",
	"BMV":    "MXN",
	"TYO":    "JPY",
	"JPX":    "JPY",
	"HKG":    "HKD",
	"ASX":    "AUD",
	"SIX":    "CHF",
	"CCC":    "USD",
	"CRYPTO": "USD",
}

// CurrencyForMarket resolves an exchange code to a currency, defaulting to
// USD for unknown venues.
func CurrencyForMarket(market string) string {
	if c, ok := MarketCurrencies[strings.ToUpper(strings.TrimSpace(market))]; ok {
		return c
	}
	return "USD"
}

// CommonTickerTypos maps frequently mistyped symbols to their correction.
// Consulted before any search-based suggestion.
var CommonTickerTypos = map[string]string{
	"APPL":      "AAPL",
	"AAPPL":     "AAPL",
	"GOOGL.":    "GOOGL",
	"GOOG L":    "GOOGL",
	"TSLAA":     "TSLA",
	"TESLA":     "TSLA",
	"MSFT.":     "MSFT",
	"MICROSOFT": "MSFT",
	"AMZN.":     "AMZN",
	"AMAZON":    "AMZN",
	"NVDIA":     "NVDA",
	"NIVIDIA":   "NVDA",
	"BERK":      "BRK.B",
	"BRKB":      "BRK.B",
	"BRK-B":     "BRK.B",
	"FB":        "META",
	"BTC":       "BTC-USD",
	"ETH":       "ETH-USD",
}

// FallbackUSDRates are approximate USD exchange rates used when the FX
// provider cannot resolve a currency. Stale by definition; better than
// failing the row.
var FallbackUSDRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0067,
	"CHF": 1.12,
	"CAD": 0.73,
	"AUD": 0.66,
	"HKD": 0.128,
	"BRL": 0.18,
	"MXN": 0.054,
	"COP": 0.00025,
}
