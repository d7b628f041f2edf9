package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/opinionparse/internal/config"
	"github.com/dgallion1/opinionparse/internal/parser"
	"github.com/dgallion1/opinionparse/internal/pathstore"
)

// Orchestrator manages the parse job queue and worker pool.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	parser *parser.Parser
	ps     *pathstore.Client
	stats  *ParseStats
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. ps may be nil when publishing is
// disabled.
func NewOrchestrator(cfg config.Config, p *parser.Parser, ps *pathstore.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		parser: p,
		ps:     ps,
		stats:  NewParseStats(time.Hour),
		log:    log,
		cfg:    cfg,
	}
}

func (o *Orchestrator) newWorker() *Worker {
	var store DocumentStore
	if o.ps != nil {
		store = o.ps
	}
	sources := func(filename string) (parser.PageSource, error) {
		return parser.ForFile(filename, o.cfg.PDFFallbackPdftotext)
	}
	return NewWorker(sources, o.parser, store, o.stats, o.log, o.cfg.MaxPages)
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the parse latency tracker.
func (o *Orchestrator) Stats() *ParseStats {
	return o.stats
}

// PathstoreClient returns the pathstore client, or nil when publishing is
// disabled.
func (o *Orchestrator) PathstoreClient() *pathstore.Client {
	return o.ps
}
