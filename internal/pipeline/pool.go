package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
)

// ErrQueueFull is returned by Submit when the queue is at capacity.
var ErrQueueFull = errors.New("worker pool queue full")

// Task identifies one document to run through the processor. BatchID
// is empty for single-document submissions.
type Task struct {
	TenantID   string
	DocumentID string
	BatchID    string
}

// Pool fans document processing out over a fixed set of workers.
// All workers share a single queue - natural load balancing via Go
// channel semantics. The worker count bounds concurrency for the whole
// deployment, not per batch.
type Pool struct {
	logger      *slog.Logger
	processor   *Processor
	store       Store
	workerCount int

	// Single shared queue (all workers pull from this)
	queue chan Task

	// In-flight tracking
	inFlight atomic.Int32
}

// PoolConfig configures a new worker pool.
type PoolConfig struct {
	Logger      *slog.Logger
	Processor   *Processor
	Store       Store
	WorkerCount int // Number of worker goroutines (default: runtime.NumCPU())
	QueueSize   int // Queue size (default: 1000)
}

// PoolStatus is a snapshot of pool load.
type PoolStatus struct {
	Workers    int `json:"workers"`
	InFlight   int `json:"in_flight"`
	QueueDepth int `json:"queue_depth"`
}

// NewPool creates a worker pool around a processor.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &Pool{
		logger:      logger.With("pool", "documents", "workers", workerCount),
		processor:   cfg.Processor,
		store:       cfg.Store,
		workerCount: workerCount,
		queue:       make(chan Task, queueSize),
	}
}

// Start begins the pool's processing. Blocks until ctx cancelled.
// Tasks already being processed run to completion on their worker
// goroutines before those exit.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}
	<-ctx.Done()
	p.logger.Info("pool stopping")
}

// worker processes tasks from the shared queue.
func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Debug("worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return

		case task := <-p.queue:
			if p.skipCancelled(ctx, task) {
				continue
			}
			p.inFlight.Add(1)
			err := p.processor.Process(ctx, task.TenantID, task.DocumentID)
			p.inFlight.Add(-1)
			if err != nil {
				// A failure here means the store was unreachable, not
				// that the document failed a stage. The document stays
				// in its last persisted status.
				p.logger.Error("document processing aborted",
					"worker_id", id,
					"document", task.DocumentID,
					"batch", task.BatchID,
					"error", err)
			}
		}
	}
}

// skipCancelled checks the task's batch at dispatch time. Cancellation
// stops queued documents from starting; it never interrupts documents
// already mid-pipeline.
func (p *Pool) skipCancelled(ctx context.Context, task Task) bool {
	if task.BatchID == "" {
		return false
	}
	batch, err := p.store.GetBatch(ctx, task.TenantID, task.BatchID)
	if err != nil {
		p.logger.Warn("failed to check batch, processing anyway",
			"batch", task.BatchID, "error", err)
		return false
	}
	if batch.Cancelled {
		p.logger.Info("skipping document from cancelled batch",
			"document", task.DocumentID, "batch", task.BatchID)
		return true
	}
	return false
}

// Submit enqueues one document for processing.
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		p.logger.Warn("queue full", "document", task.DocumentID)
		return fmt.Errorf("%w: %d queued", ErrQueueFull, len(p.queue))
	}
}

// SubmitBatch enqueues every document in a batch. Documents that do not
// fit in the queue are reported back; the rest proceed.
func (p *Pool) SubmitBatch(tenantID, batchID string, docIDs []string) (queued int, err error) {
	for _, id := range docIDs {
		if serr := p.Submit(Task{TenantID: tenantID, DocumentID: id, BatchID: batchID}); serr != nil {
			return queued, fmt.Errorf("batch %s: %w", batchID, serr)
		}
		queued++
	}
	return queued, nil
}

// Status returns current pool load.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
	}
}
