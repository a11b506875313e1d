package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeBytes converts the raw buffer to UTF-8 text according to the declared
// encoding. The single-byte codepages always decode; UTF-8 input is validated
// so a mislabeled file fails here instead of producing mojibake rows.
func decodeBytes(raw []byte, encoding string) (string, error) {
	switch canonicalEncoding(encoding) {
	case "utf-8":
		if !utf8.Valid(raw) {
			return "", &DecodingError{Encoding: encoding, Err: fmt.Errorf("invalid UTF-8 sequence")}
		}
		return string(raw), nil
	case "windows-1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", &DecodingError{Encoding: encoding, Err: err}
		}
		return string(out), nil
	case "iso-8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", &DecodingError{Encoding: encoding, Err: err}
		}
		return string(out), nil
	default:
		return "", &DecodingError{Encoding: encoding, Err: fmt.Errorf("unsupported encoding")}
	}
}

// canonicalEncoding folds the encoding aliases the upload UI offers into the
// three decoders actually supported.
func canonicalEncoding(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return "utf-8"
	case "cp1252", "windows-1252", "win-1252":
		return "windows-1252"
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return "iso-8859-1"
	default:
		return name
	}
}
