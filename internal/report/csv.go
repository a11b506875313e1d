package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV renders the pivot as delimited text. The two-level column key is
// encoded as two header rows (quarter group, then month/total label) with the
// client in the first column, matching the layout of the downloadable report.
func WriteCSV(p *Pivot, w io.Writer, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}

	top := make([]string, 0, len(p.Columns)+1)
	sub := make([]string, 0, len(p.Columns)+1)
	top = append(top, "Client")
	sub = append(sub, "")
	for _, c := range p.Columns {
		top = append(top, c.Top())
		sub = append(sub, c.Sub())
	}
	if err := cw.Write(top); err != nil {
		return err
	}
	if err := cw.Write(sub); err != nil {
		return err
	}

	for _, row := range p.Rows {
		out := make([]string, 0, len(row.Cells)+1)
		out = append(out, row.Client)
		for _, v := range row.Cells {
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
