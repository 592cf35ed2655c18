package fileio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/trade-ledger/internal/domain/imports/enricher"
)

func TestReadCSV_DelimiterSniffing(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantDelim rune
		wantRows  int
	}{
		{
			name:      "comma",
			content:   "ticker,type,amount,price,date\nAAPL,buy,10,150.50,2024-03-15\nMSFT,sell,5,420.00,2024-03-16\n",
			wantDelim: ',',
			wantRows:  3,
		},
		{
			name:      "semicolon with decimal commas",
			content:   "ticker;amount;price\nAAPL;1,5;150,25\nMSFT;2;420,10\n",
			wantDelim: ';',
			wantRows:  3,
		},
		{
			name:      "tab separated",
			content:   "ticker\ttype\tamount\nAAPL\tbuy\t10\n",
			wantDelim: '\t',
			wantRows:  2,
		},
		{
			name:      "pipe separated",
			content:   "ticker|type|amount\nAAPL|buy|10\n",
			wantDelim: '|',
			wantRows:  2,
		},
		{
			name:      "quoted commas do not fool the sniffer",
			content:   "name;ticker\n\"Apple, Inc.\";AAPL\n\"Alphabet, Inc.\";GOOGL\n",
			wantDelim: ';',
			wantRows:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := ReadCSV(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelim, grid.Delimiter)
			assert.Len(t, grid.Rows, tt.wantRows)
		})
	}
}

func TestReadCSV_HeaderDetection(t *testing.T) {
	t.Run("named columns read as a header", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("Ticker,Type,Quantity,Price,Date\nAAPL,buy,10,150,2024-03-15\n"))
		require.NoError(t, err)
		assert.True(t, grid.HasHeader)
	})

	t.Run("numeric first row is data", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("AAPL,buy,10,150.50,2024-03-15\nMSFT,sell,5,420,2024-03-16\n"))
		require.NoError(t, err)
		assert.False(t, grid.HasHeader, "a row with numbers and dates is not a header")
	})

	t.Run("empty cell in first row is data", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("ticker,,amount\nAAPL,buy,10\n"))
		require.NoError(t, err)
		assert.False(t, grid.HasHeader)
	})
}

func TestReadCSV_Cleanup(t *testing.T) {
	t.Run("byte order mark is stripped", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("\xef\xbb\xbfticker,type\nAAPL,buy\n"))
		require.NoError(t, err)
		require.True(t, grid.HasHeader)
		assert.Equal(t, "ticker", grid.Rows[0][0])
	})

	t.Run("blank rows are dropped", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("ticker,type\n\nAAPL,buy\n , \nMSFT,sell\n"))
		require.NoError(t, err)
		assert.Len(t, grid.Rows, 3)
	})

	t.Run("ragged rows survive", func(t *testing.T) {
		grid, err := ReadCSV(strings.NewReader("ticker,type,amount\nAAPL,buy\n"))
		require.NoError(t, err)
		require.Len(t, grid.Rows, 2)
		assert.Len(t, grid.Rows[1], 2)
	})
}

func TestRead_Dispatch(t *testing.T) {
	t.Run("tsv routes to the sniffer", func(t *testing.T) {
		grid, err := Read(strings.NewReader("ticker\ttype\nAAPL\tbuy\n"), "export.tsv")
		require.NoError(t, err)
		assert.Equal(t, '\t', grid.Delimiter)
	})

	t.Run("unknown extension is rejected", func(t *testing.T) {
		_, err := Read(strings.NewReader("x"), "trades.pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".pdf")
	})
}

func TestReadExcel(t *testing.T) {
	buildWorkbook := func(t *testing.T, sheet string, rows [][]interface{}) *bytes.Buffer {
		t.Helper()
		f := excelize.NewFile()
		defer f.Close()
		if sheet != "Sheet1" {
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		return buf
	}

	t.Run("prefers a trades sheet over an empty default", func(t *testing.T) {
		buf := buildWorkbook(t, "Trades", [][]interface{}{
			{"Ticker", "Type", "Quantity"},
			{"AAPL", "buy", 10},
		})

		grid, err := ReadExcel(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, "Trades", grid.SheetName)
		assert.True(t, grid.HasHeader)
		require.Len(t, grid.Rows, 2)
		assert.Equal(t, "AAPL", grid.Rows[1][0])
	})

	t.Run("falls back to the first populated sheet", func(t *testing.T) {
		buf := buildWorkbook(t, "Sheet1", [][]interface{}{
			{"Ticker", "Type"},
			{"MSFT", "sell"},
		})

		grid, err := ReadExcel(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, "Sheet1", grid.SheetName)
	})

	t.Run("workbook with only empty sheets is rejected", func(t *testing.T) {
		f := excelize.NewFile()
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		_, err = ReadExcel(bytes.NewReader(buf.Bytes()))
		assert.Error(t, err)
	})
}

func TestWriteNormalizedCSV(t *testing.T) {
	trades := []enricher.Trade{{
		RowNumber:  2,
		Ticker:     "AAPL",
		Type:       "buy",
		Amount:     decimal.NewFromFloat(10.5),
		Price:      decimal.NewFromFloat(150.456),
		Date:       time.Date(2024, 3, 15, 14, 22, 5, 0, time.UTC),
		Currency:   "USD",
		Commission: decimal.NewFromFloat(1.5),
		DollarRate: decimal.NewFromInt(1),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteNormalizedCSV(&buf, trades))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,ticker,type,amount,price,date,currency,commission,dollar_rate", lines[0])
	assert.Equal(t, "2,AAPL,buy,10.5000,150.46,2024-03-15T14:22:05Z,USD,1.50,1", lines[1])
}
