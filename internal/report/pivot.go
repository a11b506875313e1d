// Package report builds the hierarchical quarter/month revenue pivot and its
// rendered forms. The pivot is a pure function of a canonical table; rendering
// (K formatting, CSV, XLSX) never feeds back into the data.
package report

import (
	"sort"

	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
)

// ColumnKind distinguishes data columns from the injected totals. Making the
// kind explicit keeps the ordering and summation rules checkable instead of
// hiding them behind a "Total" string-key convention.
type ColumnKind int

const (
	// KindMonth is a (quarter, month) data column.
	KindMonth ColumnKind = iota
	// KindQuarterTotal is the subtotal of one quarter's month columns,
	// presented under the synthetic "Total" top-level group.
	KindQuarterTotal
	// KindAnnualTotal is the grand total over all month columns.
	KindAnnualTotal
)

const (
	totalLabel  = "Total"
	annualLabel = "Anual"
)

// Column is one pivot column: a two-level key plus its kind.
type Column struct {
	Kind    ColumnKind
	Quarter string // quarter owning the data or subtotal; empty for the annual total
	Month   string // month name; only set for KindMonth
}

// Top returns the first-level header label.
func (c Column) Top() string {
	if c.Kind == KindMonth {
		return c.Quarter
	}
	return totalLabel
}

// Sub returns the second-level header label.
func (c Column) Sub() string {
	switch c.Kind {
	case KindMonth:
		return c.Month
	case KindQuarterTotal:
		return c.Quarter
	default:
		return annualLabel
	}
}

// Row is one client's cells, aligned with Pivot.Columns. The synthetic
// column-wise total row uses the client name "Total" and is always last.
type Row struct {
	Client string
	Cells  []float64
}

// Pivot is the finished client × (quarter, month) table with injected totals.
type Pivot struct {
	Columns []Column
	Rows    []Row
}

// TotalRow returns the synthetic grand-total row.
func (p *Pivot) TotalRow() Row {
	return p.Rows[len(p.Rows)-1]
}

// ClientRows returns all rows except the grand-total row.
func (p *Pivot) ClientRows() []Row {
	return p.Rows[:len(p.Rows)-1]
}

// Build constructs the pivot from a canonical table, or nil when the table
// has no records. Clients with only sentinel-quarter records still get a row;
// their amounts simply have no month column to land in, so every total is 0.
func Build(t *core.Table) *Pivot {
	if t == nil || t.Len() == 0 {
		return nil
	}

	// Group client × quarter × month, remembering first-seen client order for
	// the stable tie-break of the final sort.
	type cellKey struct {
		client  string
		quarter string
		month   string
	}
	sums := make(map[cellKey]float64)
	var clients []string
	seen := make(map[string]struct{})
	monthsByQuarter := make(map[string]map[string]struct{})

	for _, r := range t.Records {
		if _, ok := seen[r.Client]; !ok {
			seen[r.Client] = struct{}{}
			clients = append(clients, r.Client)
		}
		if r.MonthName == "" || core.MonthIndex(r.MonthName) == 0 {
			// Sentinel-quarter records have no month column to contribute to.
			continue
		}
		if core.IsMissing(r.Amount) {
			continue
		}
		sums[cellKey{r.Client, r.Quarter, r.MonthName}] += r.Amount
		if monthsByQuarter[r.Quarter] == nil {
			monthsByQuarter[r.Quarter] = make(map[string]struct{})
		}
		monthsByQuarter[r.Quarter][r.MonthName] = struct{}{}
	}

	// Column layout: quarters in canonical order, absent quarters omitted;
	// months inside a quarter by calendar index, never by first-seen or
	// alphabetical order.
	var columns []Column
	var present []string
	for _, q := range core.Quarters {
		months := monthsByQuarter[q]
		if len(months) == 0 {
			continue
		}
		present = append(present, q)
		names := make([]string, 0, len(months))
		for m := range months {
			names = append(names, m)
		}
		sort.Slice(names, func(i, j int) bool {
			return core.MonthIndex(names[i]) < core.MonthIndex(names[j])
		})
		for _, m := range names {
			columns = append(columns, Column{Kind: KindMonth, Quarter: q, Month: m})
		}
	}
	monthCount := len(columns)
	for _, q := range present {
		columns = append(columns, Column{Kind: KindQuarterTotal, Quarter: q})
	}
	columns = append(columns, Column{Kind: KindAnnualTotal})

	rows := make([]Row, 0, len(clients)+1)
	for _, client := range clients {
		cells := make([]float64, len(columns))
		for i, col := range columns[:monthCount] {
			cells[i] = sums[cellKey{client, col.Quarter, col.Month}]
		}
		// Quarter subtotals and the annual total both sum month columns
		// only; subtotal columns never feed the annual sum, so nothing is
		// counted twice.
		for i, col := range columns[monthCount:] {
			var sum float64
			for j, mc := range columns[:monthCount] {
				if col.Kind == KindQuarterTotal && mc.Quarter != col.Quarter {
					continue
				}
				sum += cells[j]
			}
			cells[monthCount+i] = sum
		}
		rows = append(rows, Row{Client: client, Cells: cells})
	}

	// Clients by annual total, descending; ties keep first-seen order.
	annual := len(columns) - 1
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Cells[annual] > rows[j].Cells[annual]
	})

	// Column-wise total row, excluded from the sort and always last.
	total := Row{Client: totalLabel, Cells: make([]float64, len(columns))}
	for _, row := range rows {
		for i, v := range row.Cells {
			total.Cells[i] += v
		}
	}
	rows = append(rows, total)

	return &Pivot{Columns: columns, Rows: rows}
}
