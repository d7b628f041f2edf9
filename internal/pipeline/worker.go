package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"github.com/dgallion1/opinionparse/internal/parser"
	"github.com/dgallion1/opinionparse/internal/pathstore"
)

const (
	documentsPrefix = "opinions/documents"
	byHashPrefix    = "opinions/by_hash"
)

// DocumentStore is the subset of the pathstore client the worker needs.
type DocumentStore interface {
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
}

// SourceFunc picks the page decoder for an uploaded filename.
type SourceFunc func(filename string) (parser.PageSource, error)

// Worker processes a single parse job.
type Worker struct {
	sources  SourceFunc
	parser   *parser.Parser
	store    DocumentStore // nil disables cache lookup and publishing
	stats    *ParseStats
	log      *slog.Logger
	maxPages int
	backoff  func(int) time.Duration
}

func NewWorker(sources SourceFunc, p *parser.Parser, store DocumentStore, stats *ParseStats, log *slog.Logger, maxPages int) *Worker {
	return &Worker{
		sources:  sources,
		parser:   p,
		store:    store,
		stats:    stats,
		log:      log,
		maxPages: maxPages,
		backoff:  Backoff,
	}
}

// Process runs extract, cache lookup, parse and publish for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Cache lookup by content hash.
	if w.store != nil {
		doc, err := w.lookup(ctx, job.ContentHash)
		if err != nil {
			log.Warn("cache lookup failed, proceeding", "error", err)
		} else if doc != nil {
			log.Info("cached document", "case_title", doc.CaseTitle)
			// The stored copy carries the first uploader's URL.
			if job.SourceURL != "" {
				doc.SourceURL = job.SourceURL
			}
			job.SetDocument(doc)
			w.stats.RecordCacheHit()
			job.SetStatus(StatusCached, "done")
			return
		}
	}

	// Phase 2: Extract positioned runs.
	job.SetStatus(StatusExtracting, "extracting")
	src, err := w.sources(job.Filename)
	if err != nil {
		w.fail(log, job, "extracting", err)
		return
	}
	pages, err := src.Pages(bytes.NewReader(job.FileData()))
	if err != nil {
		w.fail(log, job, "extracting", fmt.Errorf("extract: %w", err))
		return
	}
	if len(pages) == 0 {
		w.fail(log, job, "extracting", fmt.Errorf("no pages in document"))
		return
	}

	truncated := false
	if w.maxPages > 0 && len(pages) > w.maxPages {
		log.Warn("page limit exceeded, truncating", "pages", len(pages), "max_pages", w.maxPages)
		job.AddError(fmt.Sprintf("truncated to %d of %d pages", w.maxPages, len(pages)))
		pages = pages[:w.maxPages]
		truncated = true
	}
	job.SetPages(len(pages))

	// Phase 3: Parse.
	job.SetStatus(StatusParsing, "parsing")
	start := time.Now()
	doc := w.parser.Parse(pages, job.SourceURL)
	w.stats.Record(time.Since(start).Milliseconds(), len(pages))
	job.SetDocument(doc)
	log.Info("parsed document",
		"pages", len(pages),
		"chapters", len(doc.Chapters),
		"case_title", doc.CaseTitle,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Phase 4: Publish.
	stored := true
	if w.store != nil && !truncated {
		job.SetStatus(StatusStoring, "storing")
		if err := w.publish(ctx, job, doc); err != nil {
			log.Error("publish failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			stored = false
		}
	}

	if truncated || !stored {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	w.stats.RecordFailure()
	job.SetStatus(StatusFailed, phase)
}

// lookup returns the document previously published for a content hash.
func (w *Worker) lookup(ctx context.Context, hash string) (*doctree.ParsedDocument, error) {
	var node *pathstore.NodeResponse
	err := withRetry(ctx, w.backoff, func() error {
		var err error
		node, err = w.store.GetNode(ctx, byHashPrefix+"/"+hash)
		return err
	})
	if err != nil || node == nil {
		return nil, err
	}
	var doc doctree.ParsedDocument
	if err := json.Unmarshal(node.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode cached document: %w", err)
	}
	return &doc, nil
}

// publish writes the document under its content hash, then a small meta
// node used for listing.
func (w *Worker) publish(ctx context.Context, job *Job, doc *doctree.ParsedDocument) error {
	source := "opinionparse:" + job.DocID
	err := withRetry(ctx, w.backoff, func() error {
		return w.store.PutNode(ctx, byHashPrefix+"/"+job.ContentHash, pathstore.NodeRequest{
			Value:  doc,
			Source: source,
		})
	})
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}

	err = withRetry(ctx, w.backoff, func() error {
		return w.store.PutNode(ctx, documentsPrefix+"/"+job.DocID, pathstore.NodeRequest{
			Value: map[string]any{
				"filename":      job.Filename,
				"case_title":    doc.CaseTitle,
				"docket_number": doc.DocketNumber,
				"decided_date":  doc.DecidedDate,
				"source_url":    doc.SourceURL,
				"content_hash":  job.ContentHash,
				"chapters":      len(doc.Chapters),
				"created_at":    job.CreatedAt.Format(time.RFC3339),
			},
			Source: source,
		})
	})
	if err != nil {
		return fmt.Errorf("put meta: %w", err)
	}
	return nil
}
