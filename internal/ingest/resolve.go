package ingest

import "strings"

// Columns is the result of header resolution: for each logical field, the
// source header that feeds it. An empty name means the field has no source
// column and falls back to its documented default value.
type Columns struct {
	Date    string
	Client  string
	Amount  string
	Partner string
	PM      string
}

// Overrides lets the caller pin the columns the heuristics cannot guess
// reliably. Partner and PM detection is deliberately conservative; when it
// misses, the caller supplies the header instead of the engine guessing.
type Overrides struct {
	PartnerColumn string
	PMColumn      string
}

// ResolveColumns maps raw headers to logical fields. First match wins, with a
// case-insensitive substring search, mirroring how historical NetSuite
// exports drift in their header naming. Client and amount are required: if
// neither a heuristic hit nor the documented default header is present, the
// input cannot be normalized and a SchemaError is returned. A missing date
// column is allowed (every record then carries the sentinel quarter), and
// missing partner/PM columns fall back to the Unassigned default.
func ResolveColumns(headers []string, ov Overrides) (Columns, error) {
	var cols Columns

	cols.Date = matchHeader(headers, "date", "fecha")

	cols.Client = matchHeader(headers, "client", "customer", "parent")
	if cols.Client == "" {
		return cols, &SchemaError{Field: "client"}
	}

	// Amount prefers the exact NetSuite header before falling back to the
	// substring search.
	cols.Amount = exactHeader(headers, "Total USD")
	if cols.Amount == "" {
		cols.Amount = matchHeader(headers, "usd", "total", "amount")
	}
	if cols.Amount == "" {
		return cols, &SchemaError{Field: "amount"}
	}

	var err error
	cols.Partner, err = resolveOwner(headers, ov.PartnerColumn, "partner",
		"client leader", "leader aux", "partner")
	if err != nil {
		return cols, err
	}
	cols.PM, err = resolveOwner(headers, ov.PMColumn, "pm", "pm")
	if err != nil {
		return cols, err
	}

	return cols, nil
}

// resolveOwner applies the partner/PM policy: heuristic first, then the
// explicit override. An override naming a header that does not exist is a
// schema error rather than a silent default, since the caller asked for a
// specific column. No hit and no override resolves to "" (default value).
func resolveOwner(headers []string, override, field string, patterns ...string) (string, error) {
	if col := matchHeader(headers, patterns...); col != "" {
		return col, nil
	}
	if override == "" {
		return "", nil
	}
	if col := exactHeader(headers, override); col != "" {
		return col, nil
	}
	return "", &SchemaError{Field: field, Column: override}
}

// matchHeader returns the first header containing any pattern,
// case-insensitively, scanning headers in order so the first column wins.
func matchHeader(headers []string, patterns ...string) string {
	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return h
			}
		}
	}
	return ""
}

// exactHeader returns the header equal to name after trimming, or "".
func exactHeader(headers []string, name string) string {
	for _, h := range headers {
		if strings.TrimSpace(h) == name {
			return h
		}
	}
	return ""
}
