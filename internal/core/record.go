package core

import (
	"math"
	"strings"
	"time"
)

const (
	// QuarterNone marks records whose date could not be parsed. They stay in
	// the table and must survive every aggregation.
	QuarterNone = "Sin Trimestre"

	// Unassigned is the default owner for records whose source lacks a
	// partner or PM column.
	Unassigned = "Sin asignar"

	// SourceNetSuite tags records ingested from a NetSuite export.
	SourceNetSuite = "NetSuite"
)

type (
	// Record is one normalized transaction row. Client and Amount are always
	// set; Amount may be NaN when the source cell was unparsable. Date-derived
	// fields are zero when HasDate is false.
	Record struct {
		Client            string
		Amount            float64
		Date              time.Time
		HasDate           bool
		Year              int
		Month             int // 1-12, 0 without a date
		MonthName         string
		Quarter           string // Q1..Q4 or QuarterNone
		Partner           string
		PartnerNormalized string
		PM                string
		Source            string
		Extra             map[string]string // unconsumed source columns, by header
	}

	// Table is an immutable canonical record set. Producers hand out fresh
	// tables; consumers never mutate them.
	Table struct {
		Records []Record
	}
)

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Clients returns the distinct client names in first-seen order.
func (t *Table) Clients() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Records {
		if _, ok := seen[r.Client]; ok {
			continue
		}
		seen[r.Client] = struct{}{}
		out = append(out, r.Client)
	}
	return out
}

// Years returns the distinct years present, ascending. Records without a date
// do not contribute.
func (t *Table) Years() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, r := range t.Records {
		if !r.HasDate {
			continue
		}
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		out = append(out, r.Year)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// monthNames holds the canonical calendar order used everywhere a month
// column or group has to be sorted. Source month names are locale text, so
// ordering by index is correctness-critical, not cosmetic.
var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthIndex maps a full English month name to 1..12, or 0 when unknown.
func MonthIndex(name string) int {
	for i, m := range monthNames {
		if strings.EqualFold(m, name) {
			return i + 1
		}
	}
	return 0
}

// MonthName returns the full English name for month 1..12, or "".
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// QuarterOf returns Q1..Q4 for month 1..12, or QuarterNone otherwise.
func QuarterOf(month int) string {
	switch {
	case month >= 1 && month <= 3:
		return "Q1"
	case month >= 4 && month <= 6:
		return "Q2"
	case month >= 7 && month <= 9:
		return "Q3"
	case month >= 10 && month <= 12:
		return "Q4"
	default:
		return QuarterNone
	}
}

// Quarters is the canonical quarter order for report columns.
var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

// NormalizeOwner canonicalizes a partner/PM name for matching: lower-cased,
// trimmed, and "Last, First" reordered to "First Last".
func NormalizeOwner(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(s, ","); i >= 0 {
		last := strings.TrimSpace(s[:i])
		first := strings.TrimSpace(s[i+1:])
		if last != "" && first != "" {
			s = first + " " + last
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// IsMissing reports whether an amount should be treated as absent in sums.
// Canonical records keep NaN so unparsable cells are never silently zeroed;
// aggregations skip them instead of poisoning every total.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
