package fileio

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheet names brokers commonly export trades under, checked before
// falling back to the first sheet with rows.
var preferredSheets = []string{"trades", "transactions", "orders", "activity"}

// ReadExcel parses an XLSX workbook into a row grid.
func ReadExcel(r io.Reader) (*Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, rows, err := pickSheet(f)
	if err != nil {
		return nil, err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if !isBlankRow(row) {
			filtered = append(filtered, row)
		}
	}

	return &Grid{
		Rows:      filtered,
		HasHeader: looksLikeHeader(filtered),
		SheetName: sheet,
	}, nil
}

func pickSheet(f *excelize.File) (string, [][]string, error) {
	names := f.GetSheetList()
	if len(names) == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	ordered := make([]string, 0, len(names))
	for _, want := range preferredSheets {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				ordered = append(ordered, name)
			}
		}
	}
	for _, name := range names {
		ordered = append(ordered, name)
	}

	for _, name := range ordered {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if len(rows) > 0 {
			return name, rows, nil
		}
	}
	return "", nil, fmt.Errorf("workbook has no populated sheet")
}
