package fileio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/catalog"
)

// candidate delimiters in preference order when counts tie.
var delimiters = []rune{',', ';', '\t', '|'}

// ReadCSV sniffs the delimiter from the first lines, parses the whole
// file, and guesses whether row zero is a header.
func ReadCSV(r io.Reader) (*Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	delim := sniffDelimiter(data)
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if isBlankRow(record) {
			continue
		}
		rows = append(rows, record)
	}

	return &Grid{
		Rows:      rows,
		HasHeader: looksLikeHeader(rows),
		Delimiter: delim,
	}, nil
}

// sniffDelimiter picks the candidate appearing most consistently across
// the first handful of lines, outside quoted sections.
func sniffDelimiter(data []byte) rune {
	lines := strings.SplitN(string(data), "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}

	best := ','
	bestScore := -1
	for _, d := range delimiters {
		counts := make([]int, 0, len(lines))
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			counts = append(counts, countUnquoted(line, d))
		}
		if len(counts) == 0 {
			continue
		}
		// Consistency matters more than raw count: every sampled line
		// should split into the same number of fields.
		min, max := counts[0], counts[0]
		for _, c := range counts {
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
		}
		if min == 0 || min != max {
			continue
		}
		if min > bestScore {
			bestScore = min
			best = d
		}
	}
	return best
}

func countUnquoted(line string, delim rune) int {
	count := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			count++
		}
	}
	return count
}

// looksLikeHeader reports whether the first row reads as column names:
// every cell non-empty, none parsing as a number or date.
func looksLikeHeader(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	for _, cell := range rows[0] {
		v := catalog.CleanCell(cell)
		if v == "" {
			return false
		}
		if _, ok := catalog.ParseNumber(v); ok {
			return false
		}
		if _, _, ok := catalog.ParseDate(v); ok {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if catalog.CleanCell(cell) != "" {
			return false
		}
	}
	return true
}
