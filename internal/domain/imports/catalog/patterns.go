package catalog

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// HeaderPatterns maps each target field to the header regexes that identify
// it. Order matters: the first field whose pattern matches a header wins,
// so more specific fields (commission, total) are listed before the generic
// amount/price patterns they would otherwise collide with.
var HeaderPatterns = []struct {
	Field    TargetField
	Patterns []*regexp.Regexp
}{
	{FieldTicker, compileAll(
		`(?i)^(ticker|symbol|símbolo|simbolo|instrument|security|asset|stock|activo|acción|accion)s?$`,
		`(?i)ticker|symbol`,
	)},
	{FieldCommission, compileAll(
		`(?i)^(commission|comm|fee|fees|comisión|comision|corretaje|costs?)$`,
		`(?i)comm\s*/\s*fee|commission|comisión|comision|transaction\s*costs?`,
	)},
	{FieldTotal, compileAll(
		`(?i)^(total|net\s*amount|proceeds|gross\s*amount|valor\s*total|importe\s*total)$`,
		`(?i)total\s*(value|amount)|proceeds`,
	)},
	{FieldType, compileAll(
		`(?i)^(type|side|action|operation|operación|operacion|tipo|transaction\s*type|buy/sell)$`,
		`(?i)\b(side|action)\b|tipo\s*de\s*operaci`,
	)},
	{FieldAmount, compileAll(
		`(?i)^(quantity|qty|shares|units|amount|cantidad|unidades|títulos|titulos|no\.?\s*of\s*shares)$`,
		`(?i)quantit|shares|units|cantidad`,
	)},
	{FieldPrice, compileAll(
		`(?i)^(price|unit\s*price|precio|cotización|cotizacion|rate|t\.?\s*price|price\s*/\s*share)$`,
		`(?i)price|precio|\brate\b`,
	)},
	{FieldDate, compileAll(
		`(?i)^(date|time|datetime|date/time|fecha|data|trade\s*date|settle(ment)?\s*date|fecha\s*de\s*operación)$`,
		`(?i)\bdate\b|fecha|\btime\b`,
	)},
	{FieldCurrency, compileAll(
		`(?i)^(currency|moneda|divisa|ccy|cur)$`,
		`(?i)currency|moneda|divisa`,
	)},
	{FieldMarket, compileAll(
		`(?i)^(market|exchange|mercado|bolsa|venue)$`,
		`(?i)market|exchange|mercado`,
	)},
	{FieldDescription, compileAll(
		`(?i)^(description|name|company|product|descripción|descripcion|nombre|producto)$`,
		`(?i)descri|company|product`,
	)},
}

// Content patterns used by the detector's content phase.
var (
	// TickerContentPattern matches short uppercase exchange symbols,
	// optionally with a class suffix or leading $.
	TickerContentPattern = regexp.MustCompile(`^\$?[A-Z]{1,6}([._-][A-Z0-9]{1,3})?$`)

	// CurrencyContentPattern matches bare ISO-4217 codes.
	CurrencyContentPattern = regexp.MustCompile(`^[A-Z]{3}$`)

	// NumberContentPattern matches plain and separator-formatted numbers.
	NumberContentPattern = regexp.MustCompile(`^-?\(?\$?[\d.,]+\)?$`)

	// DateContentPatterns are literal shapes accepted as dates during
	// content detection. Actual parsing is the enricher's job.
	DateContentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2})?)?`),
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}( \d{1,2}:\d{2})?$`),
		regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`),
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		regexp.MustCompile(`(?i)^\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4}$`),
		regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2},?\s+\d{4}$`),
	}
)

// BuySynonyms and SellSynonyms are the bilingual trade-direction
// vocabularies. The enricher consults them verbatim; the detector matches
// them via the vocabulary matcher below.
var (
	BuySynonyms = []string{
		"buy", "b", "bot", "bought", "purchase", "open", "long",
		"compra", "c", "compra de acciones", "abrir",
	}
	SellSynonyms = []string{
		"sell", "s", "sld", "sold", "sale", "close", "short",
		"venta", "v", "venta de acciones", "cerrar",
	}
)

// NormalizeTradeType maps a free-text direction value to "buy" or "sell".
// The boolean is false when the value belongs to neither vocabulary.
func NormalizeTradeType(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.Trim(v, ".")
	for _, w := range BuySynonyms {
		if v == w {
			return "buy", true
		}
	}
	for _, w := range SellSynonyms {
		if v == w {
			return "sell", true
		}
	}
	return "", false
}

// TypeVocabulary matches trade-direction words inside sampled cell values.
// It wraps an Aho-Corasick matcher so a whole sample column can be scanned
// in one pass per value regardless of vocabulary size.
type TypeVocabulary struct {
	matcher *ahocorasick.Matcher
	words   []string
}

// NewTypeVocabulary builds the matcher over both direction vocabularies.
func NewTypeVocabulary() *TypeVocabulary {
	words := make([]string, 0, len(BuySynonyms)+len(SellSynonyms))
	seen := make(map[string]bool)
	for _, w := range append(append([]string{}, BuySynonyms...), SellSynonyms...) {
		// Single letters produce too many false hits inside longer words.
		if len(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return &TypeVocabulary{
		matcher: ahocorasick.NewStringMatcher(words),
		words:   words,
	}
}

// Matches reports whether the value is a recognizable direction token.
// Exact synonym hits (including single letters) count; substring hits only
// count when the value is short enough to plausibly be a direction cell.
func (tv *TypeVocabulary) Matches(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	if _, ok := NormalizeTradeType(v); ok {
		return true
	}
	if len(v) > 24 {
		return false
	}
	return len(tv.matcher.Match([]byte(v))) > 0
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}
