// Package excel writes and reads tabular reports as .xlsx files.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Table is a rectangular data set with a header row.
type Table struct {
	Headers []string
	Rows    [][]any
}

// WriteTable writes the table to a new workbook as a formatted Excel table
// with autofitted columns.
func WriteTable(path, sheet string, table *Table) error {
	if len(table.Headers) == 0 {
		return fmt.Errorf("table has no headers")
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	header := make([]any, len(table.Headers))
	widths := make([]int, len(table.Headers))
	for i, h := range table.Headers {
		header[i] = h
		widths[i] = len(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		if len(row) != len(table.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(table.Headers))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
		for j, v := range row {
			if w := len(fmt.Sprint(v)); w > widths[j] {
				widths[j] = w
			}
		}
	}

	lastCell, err := excelize.CoordinatesToCellName(len(table.Headers), len(table.Rows)+1)
	if err != nil {
		return fmt.Errorf("table range: %w", err)
	}
	if err := f.AddTable(sheet, &excelize.Table{
		Range:     "A1:" + lastCell,
		StyleName: "TableStyleMedium2",
	}); err != nil {
		return fmt.Errorf("add table: %w", err)
	}

	// Approximate autofit from content width, capped to keep columns readable.
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		width := float64(w) + 2
		if width > 80 {
			width = 80
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// ReadSheet returns all rows of a sheet as strings, header row included.
// Trailing empty cells are padded so every row has the header's width.
func ReadSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	width := len(rows[0])
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	return rows, nil
}
