package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/fedemoisello/Visibility-Netsuite/internal/ingest"
	"github.com/fedemoisello/Visibility-Netsuite/internal/store"
)

// decodeJSONBody decodes a JSON request body, rejecting unknown fields so
// typos in request payloads fail loudly instead of silently defaulting.
func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeInputError maps engine errors onto HTTP statuses: unknown snapshots
// are 404, rejected uploads are 422, anything else is a server fault.
func writeInputError(w http.ResponseWriter, err error) {
	var (
		decodeErr *ingest.DecodingError
		parseErr  *ingest.ParseError
		schemaErr *ingest.SchemaError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &decodeErr), errors.As(err, &parseErr), errors.As(err, &schemaErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// percent is a change percentage that may carry the +Inf sentinel, which
// encoding/json cannot represent as a number.
type percent float64

func (p percent) MarshalJSON() ([]byte, error) {
	v := float64(p)
	if math.IsInf(v, 1) {
		return []byte(`"Inf"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}
