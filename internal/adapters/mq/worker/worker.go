// Package worker defines worker contracts for asynchronous video analysis.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/khelo/talenttrack/internal/domain/analysis"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
// Using the model.AnalysisJob type for consistency.
type Job = model.AnalysisJob

// Reporter applies analysis progress to the recording state machine.
// The lifecycle manager implements it.
type Reporter interface {
	// Claim transitions the recording to analyzing. Returns false when the
	// job is stale (recording replaced or retried past it) and must be dropped.
	Claim(ctx context.Context, recordingID string) (bool, error)

	// OnAnalysisResult applies the analyzer outcome. Safe under duplicate
	// and out-of-order delivery.
	OnAnalysisResult(ctx context.Context, outcome model.AnalysisOutcome) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes analysis jobs using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining jobs before stopping.
	Shutdown(ctx context.Context) error
}

// AnalysisWorker implements Worker for processing analysis jobs.
type AnalysisWorker struct {
	queue    Queue
	analyzer analysis.Analyzer
	reporter Reporter
	name     string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewAnalysisWorker creates a new worker with configuration options.
func NewAnalysisWorker(queue Queue, analyzer analysis.Analyzer, reporter Reporter, opts ...Option) *AnalysisWorker {
	w := &AnalysisWorker{
		queue:    queue,
		analyzer: analyzer,
		reporter: reporter,
		name:     "worker", // default name
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *AnalysisWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the job
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *AnalysisWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob handles a single analysis job.
func (w *AnalysisWorker) processJob(ctx context.Context, job Job) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	// Claim the recording before doing any work: a stale job (the
	// recording was replaced or retried past this attempt) is dropped.
	claimed, err := w.reporter.Claim(ctx, job.RecordingID)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "claim_error")
		return fmt.Errorf("claim recording %s: %w", job.RecordingID, err)
	}
	if !claimed {
		w.logger.Debug(ctx, "dropping stale analysis job",
			logger.String("recordingID", job.RecordingID),
		)
		return nil
	}

	// The analyzer call happens outside any store lock.
	analysisStart := time.Now()
	result, err := w.analyzer.Analyze(ctx, analysis.Request{
		RecordingID: job.RecordingID,
		VideoRef:    job.VideoRef,
		TestName:    job.TestName,
	})
	metrics.RecordAnalysisLatency(float64(time.Since(analysisStart).Milliseconds()))

	var outcome model.AnalysisOutcome
	if err != nil {
		metrics.RecordAnalysisFailure()
		outcome = model.FailedOutcome(job.RecordingID, err.Error())
	} else {
		outcome = model.ScoredOutcome(job.RecordingID, result.RawScore, result.Confidence, result.AnalysisData)
	}

	if err := w.reporter.OnAnalysisResult(ctx, outcome); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "result_error")
		w.logger.Error(ctx, "applying analysis result failed",
			logger.String("recordingID", job.RecordingID),
			logger.Error(err),
		)
		return fmt.Errorf("apply result for recording %s: %w", job.RecordingID, err)
	}

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*AnalysisWorker
	queue    Queue
	analyzer analysis.Analyzer
	reporter Reporter

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, analyzer analysis.Analyzer, reporter Reporter) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*AnalysisWorker, workerCount),
		queue:    q,
		analyzer: analyzer,
		reporter: reporter,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewAnalysisWorker(
			q,
			analyzer,
			reporter,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// signalShutdown closes the pool's shutdown channel exactly once.
func (p *Pool) signalShutdown() {
	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	// Signal shutdown to all workers
	p.signalShutdown()
	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
		default:
			close(worker.shutdown)
		}
	}

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new jobs
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to all workers
	p.signalShutdown()

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
