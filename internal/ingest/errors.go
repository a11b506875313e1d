package ingest

import "fmt"

// Abort-level failures. Per-cell coercion problems never become errors; they
// are recovered as NaN/null markers and counted in Warnings.

// DecodingError means the byte buffer could not be decoded with the requested
// character encoding.
type DecodingError struct {
	Encoding string
	Err      error
}

func (e *DecodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode input as %s: %v", e.Encoding, e.Err)
	}
	return fmt.Sprintf("decode input as %s", e.Encoding)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// ParseError means the delimited text could not be parsed into rows.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse delimited input: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError means a required column could not be resolved from the headers
// and no usable override was supplied.
type SchemaError struct {
	Field  string // logical field: client, amount, partner, pm
	Column string // explicit override that was not found, if any
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("column %q for %s not present in input", e.Column, e.Field)
	}
	return fmt.Sprintf("no column recognized for %s and no override supplied", e.Field)
}

// Warnings counts per-cell coercion failures recovered during normalization.
// They never abort the batch; callers decide whether NaN-heavy output is
// still meaningful.
type Warnings struct {
	BadDates   int
	BadAmounts int
}

// Any reports whether at least one cell failed coercion.
func (w Warnings) Any() bool {
	return w.BadDates > 0 || w.BadAmounts > 0
}
