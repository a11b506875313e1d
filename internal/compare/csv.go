package compare

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// infLabel stands in for the division-by-zero sentinel in rendered output.
// It is deliberately distinct from "NaN" so spreadsheets keep the two cases
// apart.
const infLabel = "Inf"

// WriteCSV renders a change summary as a flat row-per-group table. The
// overall record goes last under its "Total" key.
func WriteCSV(s *Summary, w io.Writer, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}

	if err := cw.Write([]string{s.GroupBy, "current", "previous", "change", "change_pct"}); err != nil {
		return err
	}
	for _, g := range s.Groups {
		if err := cw.Write(changeRow(g)); err != nil {
			return err
		}
	}
	if err := cw.Write(changeRow(s.Overall)); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func changeRow(g GroupChange) []string {
	return []string{
		g.Key,
		formatAmount(g.Current),
		formatAmount(g.Previous),
		formatAmount(g.Change),
		formatPercent(g.Percent),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	if math.IsInf(v, 1) {
		return infLabel
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
