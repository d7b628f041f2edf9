package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/opinionparse/internal/config"
	"github.com/dgallion1/opinionparse/internal/parser"
	"github.com/dgallion1/opinionparse/internal/pathstore"
	"github.com/dgallion1/opinionparse/internal/pipeline"
)

const testKey = "test-key"

const opinionJSON = `[{"number":1,"height":792,"runs":[
	{"text":"Opinion of the Court","x":250,"y":650,"font_size":10},
	{"text":"We hold that the statute applies.","x":72,"y":600,"font_size":12}
]}]`

func testConfig() config.Config {
	return config.Config{
		APIKey:         testKey,
		WorkerCount:    1,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		MaxPages:       10,
		JobTTL:         time.Hour,
	}
}

// newTestServer builds a server over a real orchestrator. Workers run only
// when start is set.
func newTestServer(t *testing.T, cfg config.Config, ps *pathstore.Client, start bool) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, parser.New(parser.DefaultRegistry()), ps, log)
	if start {
		orch.Start(context.Background())
	}
	t.Cleanup(orch.Stop)
	return NewServer(orch, log, cfg)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func authed(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(data)
	mw.WriteField("source_url", "https://example.test/23-719.pdf")
	mw.Close()

	req := authed(http.MethodPost, "/api/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats/parse", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/parse", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}

	if rec := do(s, authed(http.MethodGet, "/api/stats/parse", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}
}

func TestParse_EndToEnd(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, true)

	rec := do(s, uploadRequest(t, "23-719.json", []byte(opinionJSON)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode(t, rec)
	jobID, _ := resp["job_id"].(string)
	if jobID == "" || resp["status"] != "queued" {
		t.Fatalf("unexpected response %v", resp)
	}
	if resp["poll_url"] != "/api/parse/"+jobID+"/status" {
		t.Errorf("unexpected poll url %v", resp["poll_url"])
	}

	var status string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/status", nil))
		status, _ = decode(t, rec)["status"].(string)
		if pipeline.JobStatus(status).Done() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %q", status)
	}

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := decode(t, rec)
	if doc["source_url"] != "https://example.test/23-719.pdf" {
		t.Errorf("expected source url, got %v", doc["source_url"])
	}
	chapters, _ := doc["chapters"].([]any)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %v", doc["chapters"])
	}

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document?format=markdown", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "## Opinion of the Court") {
		t.Errorf("expected chapter heading in markdown, got %s", rec.Body)
	}

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document?format=html", nil))
	if !strings.Contains(rec.Body.String(), "<h2>Opinion of the Court</h2>") {
		t.Errorf("expected chapter heading in html, got %s", rec.Body)
	}

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document?format=docx", nil))
	if rec.Header().Get("Content-Type") != docxContentType {
		t.Errorf("expected docx content type, got %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="23-719.docx"`) {
		t.Errorf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document?format=epub", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}

	rec = do(s, authed(http.MethodGet, "/api/stats/parse", nil))
	stats, _ := decode(t, rec)["stats"].(map[string]any)
	if stats["count"] != float64(1) {
		t.Errorf("expected one parse recorded, got %v", stats)
	}
}

func TestParse_UnsupportedType(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := do(s, uploadRequest(t, "brief.docx", []byte("x")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestParse_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 16
	s := newTestServer(t, cfg, nil, false)
	rec := do(s, uploadRequest(t, "big.json", []byte(opinionJSON)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestParse_MissingFile(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("source_url", "x")
	mw.Close()
	req := authed(http.MethodPost, "/api/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if rec := do(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestParseDocument_NotReady(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := do(s, uploadRequest(t, "a.json", []byte(opinionJSON)))
	jobID, _ := decode(t, rec)["job_id"].(string)

	rec = do(s, authed(http.MethodGet, "/api/parse/"+jobID+"/document", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while queued, got %d", rec.Code)
	}
}

func TestParse_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	s := newTestServer(t, cfg, nil, false)
	if rec := do(s, uploadRequest(t, "a.json", []byte(opinionJSON))); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if rec := do(s, uploadRequest(t, "b.json", []byte(opinionJSON))); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on full queue, got %d", rec.Code)
	}
}

func TestParseStatus_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	for _, path := range []string{"/api/parse/missing/status", "/api/parse/missing/document"} {
		if rec := do(s, authed(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestDocuments_NoStore(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	if rec := do(s, authed(http.MethodGet, "/api/documents", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if rec := do(s, authed(http.MethodDelete, "/api/documents/abc", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestDocuments_ListAndDelete(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/kv/opinions/documents/*":
			w.Write([]byte(`{"nodes":[{"key_path":"opinions/documents/abc","value":{"case_title":"SMITH v. JONES"}}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/kv/opinions/documents/abc":
			w.Write([]byte(`{"key_path":"opinions/documents/abc","value":{"content_hash":"deadbeef"}}`))
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer store.Close()

	s := newTestServer(t, testConfig(), pathstore.NewClient(store.URL, "ps-key"), false)

	rec := do(s, authed(http.MethodGet, "/api/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	docs, _ := decode(t, rec)["documents"].([]any)
	if len(docs) != 1 {
		t.Errorf("expected 1 document, got %s", rec.Body)
	}

	rec = do(s, authed(http.MethodDelete, "/api/documents/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if decode(t, rec)["hash_deleted"] != true {
		t.Errorf("expected hash index deleted, got %s", rec.Body)
	}
	want := []string{"/kv/opinions/by_hash/deadbeef", "/kv/opinions/documents/abc"}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(deleted, ",") != strings.Join(want, ",") {
		t.Errorf("expected deletes %v, got %v", want, deleted)
	}

	if rec := do(s, authed(http.MethodDelete, "/api/documents/missing", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing document, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd.pdf": "passwd.pdf",
		`C:\docs\op.pdf`:       "op.pdf",
		"":                     "unnamed",
		`a"b.pdf`:              "a_b.pdf",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
