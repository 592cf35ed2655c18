// Package tickers validates candidate ticker symbols against market data
// and proposes corrections for the ones that don't resolve.
package tickers

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/trade-ledger/internal/domain/marketdata"
)

// symbolDocument is what gets indexed per known instrument.
type symbolDocument struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// SymbolIndex is an in-memory full-text index over every symbol the
// validator has seen resolve. It powers the narrow prefix search used for
// correction suggestions.
type SymbolIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewSymbolIndex creates an empty in-memory index.
func NewSymbolIndex() (*SymbolIndex, error) {
	idx, err := bleve.NewMemOnly(buildSymbolMapping())
	if err != nil {
		return nil, fmt.Errorf("tickers: create symbol index: %w", err)
	}
	return &SymbolIndex{index: idx}, nil
}

func buildSymbolMapping() mapping.IndexMapping {
	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = keyword.Name

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = simple.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("symbol", symbolField)
	doc.AddFieldMappingsAt("name", nameField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Add indexes a resolved quote's symbol. Duplicate adds overwrite.
func (s *SymbolIndex) Add(q marketdata.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Index(q.Symbol, symbolDocument{Symbol: q.Symbol, Name: q.Name})
}

// SuggestPrefix returns up to limit known symbols sharing the given prefix,
// best-scored first.
func (s *SymbolIndex) SuggestPrefix(prefix string, limit int) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := bleve.NewPrefixQuery(prefix)
	q.SetField("symbol")
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out, nil
}

// Close releases the index.
func (s *SymbolIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
