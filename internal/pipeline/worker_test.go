package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"github.com/dgallion1/opinionparse/internal/parser"
	"github.com/dgallion1/opinionparse/internal/pathstore"
)

// fakeStore is an in-memory DocumentStore. putErrs are returned, in order,
// by the first PutNode calls.
type fakeStore struct {
	mu       sync.Mutex
	nodes    map[string]json.RawMessage
	putErrs  []error
	putCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: make(map[string]json.RawMessage)}
}

func (s *fakeStore) GetNode(_ context.Context, key string) (*pathstore.NodeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes[key]
	if !ok {
		return nil, nil
	}
	return &pathstore.NodeResponse{Key: key, Value: v}, nil
}

func (s *fakeStore) PutNode(_ context.Context, key string, req pathstore.NodeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if len(s.putErrs) > 0 {
		err := s.putErrs[0]
		s.putErrs = s.putErrs[1:]
		if err != nil {
			return err
		}
	}
	b, err := json.Marshal(req.Value)
	if err != nil {
		return err
	}
	s.nodes[key] = b
	return nil
}

const onePage = `[{"number":1,"height":792,"runs":[
	{"text":"Opinion of the Court","x":250,"y":650,"font_size":10},
	{"text":"We hold that the statute applies.","x":72,"y":600,"font_size":12}
]}]`

const twoPages = `[
	{"number":1,"height":792,"runs":[{"text":"Opinion of the Court","x":250,"y":650,"font_size":10},{"text":"First page.","x":72,"y":600,"font_size":12}]},
	{"number":2,"height":792,"runs":[{"text":"Second page.","x":72,"y":600,"font_size":12}]}
]`

func testWorker(store DocumentStore, maxPages int) (*Worker, *ParseStats) {
	stats := NewParseStats(time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sources := func(filename string) (parser.PageSource, error) {
		return parser.ForFile(filename, false)
	}
	w := NewWorker(sources, parser.New(parser.DefaultRegistry()), store, stats, log, maxPages)
	w.backoff = noWait
	return w, stats
}

func TestWorker_Completed(t *testing.T) {
	store := newFakeStore()
	w, stats := testWorker(store, 0)
	job := NewJob("opinion.json", "https://example.test/o.pdf", []byte(onePage))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Pages != 1 || snap.Progress.Chapters != 1 || snap.Progress.Paragraphs != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	doc := job.Document()
	if doc == nil || doc.Chapters[0].ID != "opinion-majority" || doc.SourceURL != "https://example.test/o.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}

	if _, ok := store.nodes[byHashPrefix+"/"+job.ContentHash]; !ok {
		t.Error("expected document stored under content hash")
	}
	var meta map[string]any
	if err := json.Unmarshal(store.nodes[documentsPrefix+"/"+job.DocID], &meta); err != nil {
		t.Fatalf("expected meta node: %v", err)
	}
	if meta["filename"] != "opinion.json" || meta["content_hash"] != job.ContentHash {
		t.Errorf("unexpected meta %v", meta)
	}
	if got := stats.Snapshot().Count; got != 1 {
		t.Errorf("expected one timing sample, got %d", got)
	}
}

func TestWorker_CachedByContentHash(t *testing.T) {
	store := newFakeStore()
	job := NewJob("opinion.json", "", []byte(onePage))
	cached, _ := json.Marshal(doctree.ParsedDocument{CaseTitle: "SMITH v. JONES", Chapters: []doctree.Chapter{{ID: "syllabus"}}})
	store.nodes[byHashPrefix+"/"+job.ContentHash] = cached

	w, stats := testWorker(store, 0)
	w.Process(context.Background(), job)

	if s := job.Snapshot().Status; s != StatusCached {
		t.Fatalf("expected cached, got %q", s)
	}
	if doc := job.Document(); doc == nil || doc.CaseTitle != "SMITH v. JONES" {
		t.Errorf("expected cached document, got %+v", doc)
	}
	if store.putCalls != 0 {
		t.Errorf("expected no writes on a cache hit, got %d", store.putCalls)
	}
	snap := stats.Snapshot()
	if snap.CacheHits != 1 || snap.Count != 0 {
		t.Errorf("expected one cache hit and no parse, got %+v", snap)
	}
}

func TestWorker_CachedKeepsNewSourceURL(t *testing.T) {
	store := newFakeStore()
	job := NewJob("opinion.json", "https://example.test/second.pdf", []byte(onePage))
	cached, _ := json.Marshal(doctree.ParsedDocument{CaseTitle: "SMITH v. JONES", SourceURL: "https://example.test/first.pdf"})
	store.nodes[byHashPrefix+"/"+job.ContentHash] = cached

	w, _ := testWorker(store, 0)
	w.Process(context.Background(), job)

	if got := job.Document().SourceURL; got != "https://example.test/second.pdf" {
		t.Errorf("expected this upload's source url, got %q", got)
	}

	// Without a URL on the upload the stored one is kept.
	again := NewJob("opinion.json", "", []byte(onePage))
	w.Process(context.Background(), again)
	if got := again.Document().SourceURL; got != "https://example.test/first.pdf" {
		t.Errorf("expected stored source url, got %q", got)
	}
}

func TestWorker_NoStore(t *testing.T) {
	w, _ := testWorker(nil, 0)
	job := NewJob("opinion.json", "", []byte(onePage))
	w.Process(context.Background(), job)
	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Errorf("expected completed, got %q", s)
	}
}

func TestWorker_UnsupportedFileFails(t *testing.T) {
	w, stats := testWorker(nil, 0)
	job := NewJob("notes.txt", "", []byte("plain text"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "extracting" {
		t.Errorf("expected failed while extracting, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected one error, got %v", snap.Progress.Errors)
	}
	if stats.Snapshot().Failures != 1 {
		t.Error("expected failure counted")
	}
}

func TestWorker_EmptyDocumentFails(t *testing.T) {
	w, _ := testWorker(nil, 0)
	job := NewJob("empty.json", "", []byte(`[]`))
	w.Process(context.Background(), job)
	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected failed, got %q", s)
	}
}

func TestWorker_TruncatedIsPartialAndUnpublished(t *testing.T) {
	store := newFakeStore()
	w, _ := testWorker(store, 1)
	job := NewJob("long.json", "", []byte(twoPages))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected partial, got %q", snap.Status)
	}
	if snap.Progress.Pages != 1 {
		t.Errorf("expected 1 page parsed, got %d", snap.Progress.Pages)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected truncation error, got %v", snap.Progress.Errors)
	}
	if store.putCalls != 0 {
		t.Errorf("expected truncated document not published, got %d puts", store.putCalls)
	}
}

func TestWorker_RetriesTransientStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.putErrs = []error{
		&pathstore.RetryableError{StatusCode: 503},
		&pathstore.RetryableError{StatusCode: 429},
	}
	w, _ := testWorker(store, 0)
	job := NewJob("opinion.json", "", []byte(onePage))
	w.Process(context.Background(), job)

	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Fatalf("expected completed after retries, got %q", s)
	}
	if store.putCalls != 4 {
		t.Errorf("expected 4 put calls, got %d", store.putCalls)
	}
}

func TestWorker_StoreFailureIsPartial(t *testing.T) {
	store := newFakeStore()
	store.putErrs = []error{errors.New("status 400")}
	w, _ := testWorker(store, 0)
	job := NewJob("opinion.json", "", []byte(onePage))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected partial, got %q", snap.Status)
	}
	if job.Document() == nil {
		t.Error("expected parsed document kept despite store failure")
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected one store error, got %v", snap.Progress.Errors)
	}
}
