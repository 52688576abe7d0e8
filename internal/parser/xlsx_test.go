package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func buildWorkbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, cells := range rows {
			row := sheet.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestXLSXSupports(t *testing.T) {
	x := NewXLSX()
	assert.True(t, x.Supports(xlsxMime))
	assert.True(t, x.Supports("application/vnd.ms-excel"))
	assert.False(t, x.Supports("application/pdf"))
	assert.Equal(t, XLSXName, x.Name())
	assert.NoError(t, x.HealthCheck(context.Background()))
}

func TestXLSXParse(t *testing.T) {
	content := buildWorkbook(t, map[string][][]string{
		"Rent Schedule": {
			{"year", "monthly rent"},
			{"1", "4500"},
			{"2", "4635"},
		},
	})

	result, err := NewXLSX().Parse(context.Background(), content, xlsxMime)
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)

	table := result.Tables[0]
	assert.Equal(t, "Rent Schedule", table.Name)
	assert.Equal(t, []string{"year", "monthly rent"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2", "4635"}, table.Rows[1])

	assert.Contains(t, result.Text, "Rent Schedule")
	assert.Contains(t, result.Text, "year\tmonthly rent")
	assert.InDelta(t, 0.90, result.Confidence, 1e-9)
}

func TestXLSXParseSkipsEmptyRows(t *testing.T) {
	content := buildWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"a", "b"},
			{"", ""},
			{"1", "2"},
		},
	})

	result, err := NewXLSX().Parse(context.Background(), content, xlsxMime)
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)
	assert.Len(t, result.Tables[0].Rows, 1)
}

func TestXLSXParseEmptyWorkbook(t *testing.T) {
	content := buildWorkbook(t, map[string][][]string{"Sheet1": {}})

	_, err := NewXLSX().Parse(context.Background(), content, xlsxMime)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, XLSXName, perr.Parser)
	assert.False(t, perr.Transient)
}

func TestXLSXParseGarbage(t *testing.T) {
	_, err := NewXLSX().Parse(context.Background(), []byte("not a zip archive"), xlsxMime)
	require.Error(t, err)
	var perr *Error
	assert.ErrorAs(t, err, &perr)
}
