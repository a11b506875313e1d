package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fedemoisello/Visibility-Netsuite/internal/compare"
	"github.com/fedemoisello/Visibility-Netsuite/internal/ingest"
	"github.com/fedemoisello/Visibility-Netsuite/internal/log"
	"github.com/fedemoisello/Visibility-Netsuite/internal/report"
	"github.com/fedemoisello/Visibility-Netsuite/internal/services"
	"github.com/fedemoisello/Visibility-Netsuite/internal/store"
)

type warningsResponse struct {
	BadDates   int `json:"bad_dates"`
	BadAmounts int `json:"bad_amounts"`
}

type snapshotResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	UploadedAt time.Time         `json:"uploaded_at"`
	Records    int               `json:"records"`
	Clients    int               `json:"clients"`
	Warnings   *warningsResponse `json:"warnings,omitempty"`
	CacheHit   bool              `json:"cache_hit,omitempty"`
}

func toSnapshotResponse(s store.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:         s.ID,
		Name:       s.Name,
		UploadedAt: s.UploadedAt,
		Records:    s.Records,
		Clients:    s.Clients,
	}
}

// parseIngestOptions reads the upload tuning fields shared by the snapshot
// and comparison endpoints.
func parseIngestOptions(get func(string) string) (ingest.Options, error) {
	opts := ingest.DefaultOptions()

	if v := strings.TrimSpace(get("delimiter")); v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", v)
		}
		opts.Delimiter = r
	}
	if v := strings.TrimSpace(get("encoding")); v != "" {
		opts.Encoding = v
	}
	opts.Overrides.PartnerColumn = strings.TrimSpace(get("partner_column"))
	opts.Overrides.PMColumn = strings.TrimSpace(get("pm_column"))

	return opts, nil
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing file field %q", field)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload %q: %w", field, err)
	}
	return raw, header.Filename, nil
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}

	raw, filename, err := readUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := parseIngestOptions(r.FormValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Ingest(r.Context(), filename, raw, opts)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "upload rejected",
			log.FieldSnapshot, filename, log.FieldError, err.Error())
		writeInputError(w, err)
		return
	}

	resp := toSnapshotResponse(res.Snapshot)
	resp.Warnings = &warningsResponse{BadDates: res.Warnings.BadDates, BadAmounts: res.Warnings.BadAmounts}
	resp.CacheHit = res.CacheHit
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps := s.svc.Snapshots(r.Context())
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	s.svc.DeleteSnapshot(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func parseReportFilters(r *http.Request) (services.ReportFilters, error) {
	q := r.URL.Query()
	f := services.ReportFilters{
		Clients:  q["client"],
		Quarter:  strings.TrimSpace(q.Get("quarter")),
		Partners: q["partner"],
		PMs:      q["pm"],
	}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid year %q", v)
		}
		f.Year = year
	}
	return f, nil
}

type reportColumn struct {
	Top string `json:"top"`
	Sub string `json:"sub"`
}

type reportRow struct {
	Client  string    `json:"client"`
	Cells   []float64 `json:"cells"`
	Display []string  `json:"display"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("snapshot"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "snapshot query parameter is required")
		return
	}
	filters, err := parseReportFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.svc.PivotReport(r.Context(), id, filters)
	if err != nil {
		writeInputError(w, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "json":
		s.writeReportJSON(w, id, p)
	case "csv":
		s.writeReportCSV(w, r, p)
	case "xlsx":
		s.writeReportExcel(w, r, p)
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format)
	}
}

func (s *Server) writeReportJSON(w http.ResponseWriter, id string, p *report.Pivot) {
	columns := []reportColumn{}
	rows := []reportRow{}
	if p != nil {
		for _, c := range p.Columns {
			columns = append(columns, reportColumn{Top: c.Top(), Sub: c.Sub()})
		}
		for _, row := range p.Rows {
			display := make([]string, len(row.Cells))
			for i, v := range row.Cells {
				display[i] = report.FormatThousands(v)
			}
			rows = append(rows, reportRow{Client: row.Client, Cells: row.Cells, Display: display})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": id,
		"columns":  columns,
		"rows":     rows,
	})
}

func (s *Server) writeReportCSV(w http.ResponseWriter, r *http.Request, p *report.Pivot) {
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	delimiter := ';'
	if v := strings.TrimSpace(r.URL.Query().Get("delimiter")); v != "" {
		delimiter, _ = utf8.DecodeRuneInString(v)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.SnapshotFilename("csv")+`"`)
	if err := report.WriteCSV(p, w, delimiter); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "csv export failed", log.FieldError, err.Error())
	}
}

func (s *Server) writeReportExcel(w http.ResponseWriter, r *http.Request, p *report.Pivot) {
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	f, err := report.ExportExcel(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "excel export failed: "+err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.SnapshotFilename("xlsx")+`"`)
	if err := f.Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "excel export failed", log.FieldError, err.Error())
	}
}

func parseGroupBy(name, column string) (compare.GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "client":
		return compare.ByClient(), nil
	case "partner":
		return compare.ByPartner(), nil
	case "pm":
		return compare.ByPM(), nil
	case "month":
		return compare.ByMonth(), nil
	case "column":
		if column == "" {
			return compare.GroupBy{}, errors.New("group_by=column requires a column name")
		}
		return compare.ByColumn(column), nil
	default:
		return compare.GroupBy{}, fmt.Errorf("unknown group_by %q", name)
	}
}

type groupChangeResponse struct {
	Key       string  `json:"key"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	Change    float64 `json:"change"`
	ChangePct percent `json:"change_pct"`
}

func toGroupChangeResponse(g compare.GroupChange) groupChangeResponse {
	return groupChangeResponse{
		Key:       g.Key,
		Current:   g.Current,
		Previous:  g.Previous,
		Change:    g.Change,
		ChangePct: percent(g.Percent),
	}
}

type compareRequest struct {
	Current  string `json:"current"`
	Previous string `json:"previous"`
	GroupBy  string `json:"group_by"`
	Column   string `json:"column"`
}

// handleCompare diffs either two stored snapshots (JSON body with ids) or two
// uploaded files (multipart body), along a grouping dimension.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.handleCompareUploads(w, r)
		return
	}

	var req compareRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Current == "" || req.Previous == "" {
		writeError(w, http.StatusBadRequest, "current and previous snapshot ids are required")
		return
	}
	by, err := parseGroupBy(req.GroupBy, req.Column)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.svc.Compare(r.Context(), req.Current, req.Previous, by)
	if err != nil {
		writeInputError(w, err)
		return
	}
	s.writeCompareResult(w, r, summary, nil, nil)
}

func (s *Server) handleCompareUploads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.maxUploadBytes)
	if err := r.ParseMultipartForm(2 * s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}

	currentRaw, _, err := readUpload(r, "current_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	previousRaw, _, err := readUpload(r, "previous_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := parseIngestOptions(r.FormValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	by, err := parseGroupBy(r.FormValue("group_by"), r.FormValue("column"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, curWarn, prevWarn, err := s.svc.CompareUploads(r.Context(), currentRaw, previousRaw, opts, by)
	if err != nil {
		writeInputError(w, err)
		return
	}
	s.writeCompareResult(w, r, summary,
		&warningsResponse{BadDates: curWarn.BadDates, BadAmounts: curWarn.BadAmounts},
		&warningsResponse{BadDates: prevWarn.BadDates, BadAmounts: prevWarn.BadAmounts},
	)
}

func (s *Server) writeCompareResult(w http.ResponseWriter, r *http.Request, summary *compare.Summary, curWarn, prevWarn *warningsResponse) {
	if strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := compare.WriteCSV(summary, w, ','); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "comparison csv export failed", log.FieldError, err.Error())
		}
		return
	}

	groups := make([]groupChangeResponse, 0, len(summary.Groups))
	for _, g := range summary.Groups {
		groups = append(groups, toGroupChangeResponse(g))
	}
	top := make([]groupChangeResponse, 0, s.topClients)
	for _, g := range compare.TopN(summary.Groups, s.topClients) {
		top = append(top, toGroupChangeResponse(g))
	}

	resp := map[string]any{
		"group_by": summary.GroupBy,
		"overall":  toGroupChangeResponse(summary.Overall),
		"groups":   groups,
		"top":      top,
	}
	if curWarn != nil {
		resp["current_warnings"] = curWarn
		resp["previous_warnings"] = prevWarn
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	if !s.svc.GoalConfigured() {
		writeError(w, http.StatusNotFound, "no goal configured")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("snapshot"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "snapshot query parameter is required")
		return
	}

	status, err := s.svc.GoalProgress(r.Context(), id)
	if err != nil {
		writeInputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
