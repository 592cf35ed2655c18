// Package fileio turns broker export files into the row grid the analysis
// pipeline consumes. CSV and TSV delimiters are sniffed from content;
// XLSX books are read through their first populated sheet.
package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Grid is a parsed file: raw rows plus what we learned about its shape.
type Grid struct {
	Rows      [][]string
	HasHeader bool
	Delimiter rune   // zero for Excel sources
	SheetName string // empty for CSV sources
}

// Read parses the file content according to its extension. Unknown
// extensions are treated as delimiter-sniffed text.
func Read(r io.Reader, filename string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return ReadExcel(r)
	case ".csv", ".tsv", ".txt", "":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}
