package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Visibility"

// ExportExcel renders the pivot as a styled workbook: two merged header rows
// for the quarter/month hierarchy, raw amounts in the cells, and the totals
// highlighted. The caller owns the returned file and writes it wherever the
// download goes.
func ExportExcel(p *Pivot) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	if err := writeHeader(f, p); err != nil {
		return nil, err
	}

	for i, row := range p.Rows {
		r := i + 3 // two header rows
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, row.Client); err != nil {
			return nil, err
		}
		for j, v := range row.Cells {
			cell, err := excelize.CoordinatesToCellName(j+2, r)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if err := styleTotals(f, p); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return nil, err
	}
	return f, nil
}

// writeHeader writes the two header rows and merges each top-level group
// (quarter or the synthetic Total block) across its columns.
func writeHeader(f *excelize.File, p *Pivot) error {
	if err := f.SetCellValue(sheetName, "A1", "Client"); err != nil {
		return err
	}
	if err := f.MergeCell(sheetName, "A1", "A2"); err != nil {
		return err
	}

	for i, c := range p.Columns {
		topCell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, topCell, c.Top()); err != nil {
			return err
		}
		subCell, err := excelize.CoordinatesToCellName(i+2, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, subCell, c.Sub()); err != nil {
			return err
		}
	}

	// Merge runs of identical top-level labels.
	start := 0
	for i := 1; i <= len(p.Columns); i++ {
		if i < len(p.Columns) && p.Columns[i].Top() == p.Columns[start].Top() {
			continue
		}
		if i-start > 1 {
			from, err := excelize.CoordinatesToCellName(start+2, 1)
			if err != nil {
				return err
			}
			to, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return err
			}
			if err := f.MergeCell(sheetName, from, to); err != nil {
				return err
			}
		}
		start = i
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	return f.SetRowStyle(sheetName, 1, 2, style)
}

// styleTotals bolds the grand-total row.
func styleTotals(f *excelize.File, p *Pivot) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	totalRow := len(p.Rows) + 2
	return f.SetRowStyle(sheetName, totalRow, totalRow, style)
}

// SnapshotFilename builds the download name for a rendered report.
func SnapshotFilename(ext string) string {
	return fmt.Sprintf("reporte_visibility_netsuite.%s", ext)
}
