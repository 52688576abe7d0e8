package parser

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXName identifies the in-process spreadsheet adapter.
const XLSXName = "xlsxparse"

// Spreadsheets carry their structure explicitly, so extraction is reliable
// without an external service.
const xlsxConfidence = 0.90

var xlsxMimes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel":                                          true,
}

// XLSX parses spreadsheet workbooks in-process. Each sheet becomes one
// table with the first row as headers.
type XLSX struct{}

// NewXLSX creates the spreadsheet adapter.
func NewXLSX() *XLSX {
	return &XLSX{}
}

func (x *XLSX) Name() string { return XLSXName }

func (x *XLSX) Supports(mimeType string) bool {
	return xlsxMimes[mimeType]
}

// Parse reads every sheet of the workbook. Empty sheets are skipped; a
// workbook with no populated sheets is an adapter failure.
func (x *XLSX) Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, NewError(XLSXName, eris.Wrap(err, "open workbook"))
	}

	var tables []Table
	var text strings.Builder
	for _, sheet := range f.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, NewTransientError(XLSXName, err)
		}
		table := sheetToTable(sheet)
		if len(table.Headers) == 0 && len(table.Rows) == 0 {
			continue
		}
		tables = append(tables, table)

		text.WriteString(sheet.Name)
		text.WriteString("\n")
		text.WriteString(strings.Join(table.Headers, "\t"))
		text.WriteString("\n")
		for _, row := range table.Rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}

	if len(tables) == 0 {
		return nil, NewError(XLSXName, eris.New("workbook has no populated sheets"))
	}

	return &ParseResult{
		Text:       strings.TrimSpace(text.String()),
		Tables:     tables,
		Confidence: xlsxConfidence,
	}, nil
}

// HealthCheck always succeeds: the adapter has no external dependency.
func (x *XLSX) HealthCheck(ctx context.Context) error { return nil }

func sheetToTable(sheet *xlsx.Sheet) Table {
	table := Table{Name: sheet.Name}
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		empty := true
		for j, cell := range row.Cells {
			cells[j] = cell.String()
			if strings.TrimSpace(cells[j]) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		if i == 0 {
			table.Headers = cells
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}
