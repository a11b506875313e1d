package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fedemoisello/Visibility-Netsuite/internal/cache"
	"github.com/fedemoisello/Visibility-Netsuite/internal/log"
	"github.com/fedemoisello/Visibility-Netsuite/internal/services"
	"github.com/fedemoisello/Visibility-Netsuite/internal/store"
)

const sampleCSV = `Fecha;Customer Parent;Total USD;Client Leader;PM
15/1/2024;Acme;1.500,00;Doe, Jane;Smith, Bob
20/2/2024;Acme;500;Doe, Jane;Smith, Bob
10/3/2024;Beta;2.000,00;Roe, Richard;Smith, Bob
`

const previousCSV = `Fecha;Customer Parent;Total USD;Client Leader;PM
15/1/2024;Acme;1.000,00;Doe, Jane;Smith, Bob
10/3/2024;Gamma;300;Roe, Richard;Smith, Bob
`

func newTestServer(t *testing.T, goal services.Goal) *Server {
	t.Helper()
	logger := log.New(log.Config{
		Handler: slog.NewTextHandler(&bytes.Buffer{}, nil),
	})
	c := cache.NewLRUCache[services.NormalizedUpload](8, time.Minute)
	svc := services.NewVisibilityService(c, store.New(), goal, logger)
	s := NewServer(":0", svc, logger, Options{TopClients: 2})
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func uploadSnapshot(t *testing.T, s *Server, csv string) string {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{"file": csv}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp.ID
}

func TestSnapshotUploadAndList(t *testing.T) {
	s := newTestServer(t, services.Goal{})

	body, contentType := multipartBody(t, map[string]string{"file": sampleCSV}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Records  int    `json:"records"`
		Clients  int    `json:"clients"`
		Warnings struct {
			BadDates   int `json:"bad_dates"`
			BadAmounts int `json:"bad_amounts"`
		} `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Records != 3 || created.Clients != 2 {
		t.Errorf("created = %+v", created)
	}
	if created.Warnings.BadDates != 0 || created.Warnings.BadAmounts != 0 {
		t.Errorf("warnings = %+v", created.Warnings)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Snapshots []struct {
			ID string `json:"id"`
		} `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Snapshots) != 1 || list.Snapshots[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestSnapshotUploadErrors(t *testing.T) {
	s := newTestServer(t, services.Goal{})

	// No file part at all.
	body, contentType := multipartBody(t, nil, map[string]string{"delimiter": ";"})
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	if rec := do(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rec.Code)
	}

	// Unusable headers abort with a schema error.
	body, contentType = multipartBody(t, map[string]string{"file": "a;b;c\n1;2;3\n"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	if rec := do(s, req); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("schema error: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Unknown encoding.
	body, contentType = multipartBody(t, map[string]string{"file": sampleCSV}, map[string]string{"encoding": "ebcdic"})
	req = httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	if rec := do(s, req); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad encoding: status = %d", rec.Code)
	}

	// Multi-rune delimiter.
	body, contentType = multipartBody(t, map[string]string{"file": sampleCSV}, map[string]string{"delimiter": ";;"})
	req = httptest.NewRequest(http.MethodPost, "/api/snapshots", body)
	req.Header.Set("Content-Type", contentType)
	if rec := do(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad delimiter: status = %d", rec.Code)
	}
}

func TestSnapshotDelete(t *testing.T) {
	s := newTestServer(t, services.Goal{})
	id := uploadSnapshot(t, s, sampleCSV)

	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/snapshots/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("report after delete: status = %d", rec.Code)
	}
}

func TestReportJSON(t *testing.T) {
	s := newTestServer(t, services.Goal{})
	id := uploadSnapshot(t, s, sampleCSV)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Columns []struct {
			Top string `json:"top"`
			Sub string `json:"sub"`
		} `json:"columns"`
		Rows []struct {
			Client  string    `json:"client"`
			Cells   []float64 `json:"cells"`
			Display []string  `json:"display"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Jan, Feb, Mar under Q1, then the Q1 subtotal and the annual total.
	if len(resp.Columns) != 5 {
		t.Fatalf("columns = %+v", resp.Columns)
	}
	if resp.Columns[0].Top != "Q1" || resp.Columns[0].Sub != "January" {
		t.Errorf("first column = %+v", resp.Columns[0])
	}
	if last := resp.Columns[4]; last.Top != "Total" || last.Sub != "Anual" {
		t.Errorf("last column = %+v", last)
	}

	if len(resp.Rows) != 3 {
		t.Fatalf("rows = %+v", resp.Rows)
	}
	total := resp.Rows[2]
	if total.Client != "Total" || total.Cells[4] != 4000 {
		t.Errorf("total row = %+v", total)
	}
	if total.Display[4] != "4K" {
		t.Errorf("total display = %+v", total.Display)
	}
}

func TestReportFiltersAndFormats(t *testing.T) {
	s := newTestServer(t, services.Goal{})
	id := uploadSnapshot(t, s, sampleCSV)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&client=Acme", nil))
	var resp struct {
		Rows []struct {
			Client string `json:"client"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Rows) != 2 || resp.Rows[0].Client != "Acme" {
		t.Errorf("filtered rows = %+v", resp.Rows)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("csv content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Client;") {
		t.Errorf("csv body = %q", rec.Body.String())
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&format=xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("xlsx disposition = %q", cd)
	}

	// Filtering everything away yields an empty report, not an error.
	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&year=1999", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty report status = %d", rec.Code)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&format=pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d", rec.Code)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/report?snapshot="+id+"&year=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad year: status = %d", rec.Code)
	}
}

func TestCompareStored(t *testing.T) {
	s := newTestServer(t, services.Goal{})
	currentID := uploadSnapshot(t, s, sampleCSV)
	previousID := uploadSnapshot(t, s, previousCSV)

	payload, _ := json.Marshal(map[string]string{
		"current":  currentID,
		"previous": previousID,
		"group_by": "client",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		GroupBy string `json:"group_by"`
		Overall struct {
			Current  float64 `json:"current"`
			Previous float64 `json:"previous"`
			Change   float64 `json:"change"`
		} `json:"overall"`
		Groups []struct {
			Key       string          `json:"key"`
			Change    float64         `json:"change"`
			ChangePct json.RawMessage `json:"change_pct"`
		} `json:"groups"`
		Top []struct {
			Key string `json:"key"`
		} `json:"top"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.GroupBy != "client" {
		t.Errorf("group_by = %q", resp.GroupBy)
	}
	if resp.Overall.Current != 4000 || resp.Overall.Previous != 1300 || resp.Overall.Change != 2700 {
		t.Errorf("overall = %+v", resp.Overall)
	}
	if len(resp.Groups) != 3 || resp.Groups[0].Key != "Beta" {
		t.Errorf("groups = %+v", resp.Groups)
	}
	// Beta is new: previous is zero, so the percent is the Inf sentinel.
	if string(resp.Groups[0].ChangePct) != `"Inf"` {
		t.Errorf("Beta change_pct = %s", resp.Groups[0].ChangePct)
	}
	// TopClients is 2 in the test server.
	if len(resp.Top) != 2 {
		t.Errorf("top = %+v", resp.Top)
	}

	// Unknown snapshot id.
	payload, _ = json.Marshal(map[string]string{"current": currentID, "previous": "nope"})
	req = httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if rec := do(s, req); rec.Code != http.StatusNotFound {
		t.Errorf("unknown snapshot: status = %d", rec.Code)
	}

	// Unknown dimension.
	payload, _ = json.Marshal(map[string]string{"current": currentID, "previous": previousID, "group_by": "color"})
	req = httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if rec := do(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown group_by: status = %d", rec.Code)
	}
}

func TestCompareUploads(t *testing.T) {
	s := newTestServer(t, services.Goal{})

	body, contentType := multipartBody(t,
		map[string]string{"current_file": sampleCSV, "previous_file": previousCSV},
		map[string]string{"group_by": "client"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/compare", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Overall struct {
			Change float64 `json:"change"`
		} `json:"overall"`
		CurrentWarnings *struct {
			BadDates int `json:"bad_dates"`
		} `json:"current_warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Overall.Change != 2700 {
		t.Errorf("overall change = %v", resp.Overall.Change)
	}
	if resp.CurrentWarnings == nil {
		t.Error("upload comparison must report per-file warnings")
	}

	// CSV rendering of the comparison.
	body, contentType = multipartBody(t,
		map[string]string{"current_file": sampleCSV, "previous_file": previousCSV},
		nil,
	)
	req = httptest.NewRequest(http.MethodPost, "/api/compare?format=csv", body)
	req.Header.Set("Content-Type", contentType)
	rec = do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Beta,2000.00,0.00,2000.00,Inf") {
		t.Errorf("csv body = %q", rec.Body.String())
	}

	// Missing previous file.
	body, contentType = multipartBody(t, map[string]string{"current_file": sampleCSV}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/compare", body)
	req.Header.Set("Content-Type", contentType)
	if rec := do(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rec.Code)
	}
}

func TestGoalEndpoint(t *testing.T) {
	s := newTestServer(t, services.Goal{Owner: "Doe, Jane", Target: 10000, FallbackProgress: 1200})
	id := uploadSnapshot(t, s, sampleCSV)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/goal?snapshot="+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status struct {
		Owner    string  `json:"owner"`
		Progress float64 `json:"progress"`
		Percent  float64 `json:"percent"`
		Fallback bool    `json:"fallback"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Progress != 2000 || status.Fallback {
		t.Errorf("status = %+v", status)
	}

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/goal", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing snapshot param: status = %d", rec.Code)
	}

	unconfigured := newTestServer(t, services.Goal{})
	if rec := do(unconfigured, httptest.NewRequest(http.MethodGet, "/api/goal?snapshot=any", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("no goal configured: status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, services.Goal{})

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}
}
