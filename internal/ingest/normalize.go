// Package ingest turns raw NetSuite export bytes into the canonical record
// table the reporting and comparison engines consume. Decoding, parsing, and
// schema failures abort the call; individual cells that fail coercion become
// null/NaN markers and are only counted, because historical source data is
// expected to be inconsistent.
package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
)

// Options configures one normalization call.
type Options struct {
	Delimiter rune   // one of ';', ',', '\t', '|'
	Encoding  string // utf-8, cp1252, latin1, iso-8859-1
	Overrides Overrides
}

// DefaultOptions matches the most common NetSuite export shape.
func DefaultOptions() Options {
	return Options{Delimiter: ';', Encoding: "utf-8"}
}

// Normalize decodes, parses, and coerces a raw export into a canonical table.
// Zero data rows yield an empty table and a nil error: that is a valid
// terminal state, not a failure. The returned table is freshly allocated and
// never retains the input buffer.
func Normalize(raw []byte, opts Options) (*core.Table, Warnings, error) {
	var warns Warnings

	text, err := decodeBytes(raw, opts.Encoding)
	if err != nil {
		return nil, warns, err
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return &core.Table{}, warns, nil
	}
	if err != nil {
		return nil, warns, &ParseError{Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cols, err := ResolveColumns(header, opts.Overrides)
	if err != nil {
		return nil, warns, err
	}
	idx := headerIndex(header)

	consumed := map[string]struct{}{
		cols.Date: {}, cols.Client: {}, cols.Amount: {},
		cols.Partner: {}, cols.PM: {},
	}

	table := &core.Table{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warns, &ParseError{Err: err}
		}

		rec := core.Record{
			Client: cell(row, idx, cols.Client),
			Source: core.SourceNetSuite,
		}

		rec.Amount = parseAmount(cell(row, idx, cols.Amount), &warns)

		if cols.Date != "" {
			if d, ok := parseDate(cell(row, idx, cols.Date)); ok {
				rec.Date = d
				rec.HasDate = true
				rec.Year = d.Year()
				rec.Month = int(d.Month())
				rec.MonthName = core.MonthName(rec.Month)
			} else if strings.TrimSpace(cell(row, idx, cols.Date)) != "" {
				warns.BadDates++
			}
		}
		rec.Quarter = core.QuarterOf(rec.Month)

		rec.Partner = ownerValue(cell(row, idx, cols.Partner), cols.Partner)
		rec.PartnerNormalized = core.NormalizeOwner(rec.Partner)
		rec.PM = ownerValue(cell(row, idx, cols.PM), cols.PM)

		for _, h := range header {
			if _, ok := consumed[h]; ok || h == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = cell(row, idx, h)
		}

		table.Records = append(table.Records, rec)
	}

	return table, warns, nil
}

// headerIndex maps each header name to its first column position.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

// cell returns the row value under the named header, or "" when the row is
// ragged or the column is unresolved.
func cell(row []string, idx map[string]int, col string) string {
	if col == "" {
		return ""
	}
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// ownerValue applies the partner/PM default policy: when the table has no
// column for the field, or the cell is blank, the record is Unassigned.
func ownerValue(v, col string) string {
	if col == "" {
		return core.Unassigned
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return core.Unassigned
	}
	return v
}

// parseAmount coerces a NetSuite amount cell. The exports use European
// formatting, so '.' is a thousands separator and ',' the decimal mark:
// "1.500,00" -> 1500. Unparsable cells become NaN, never zero, so bad data
// stays visible instead of quietly shrinking totals.
func parseAmount(s string, warns *Warnings) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		warns.BadAmounts++
		return math.NaN()
	}
	return v
}

// dayFirstLayouts is tried before defaultLayouts: the exports come from
// European locales where 03/04/2024 means the 3rd of April.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
}

var defaultLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1-2-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate attempts day-first interpretation, then the default layouts.
// Failure is reported to the caller, never raised: the record stays in the
// table under the sentinel quarter.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	for _, layout := range defaultLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
