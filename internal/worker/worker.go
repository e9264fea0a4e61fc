// Package worker runs the analysis pipeline: it polls the job queue,
// fetches destination content, runs the analysis engine, and persists the
// results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/metrics"
)

// JobQueue is the queue surface the worker drives.
type JobQueue interface {
	Claim(ctx context.Context, limit int) ([]domain.AnalysisJob, error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errorMsg string) (bool, error)
	MarkTerminal(ctx context.Context, jobID, errorMsg string) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LinkStore is the link persistence the worker reads and writes.
type LinkStore interface {
	GetByID(ctx context.Context, id string) (*domain.Link, error)
	UpdateAnalysis(ctx context.Context, id string, result *domain.AnalysisResult, status domain.AnalysisStatus) error
	SetAnalysisStatus(ctx context.Context, id string, status domain.AnalysisStatus) error
}

// ContentFetcher retrieves a destination's analyzable text.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Analyzer turns content into an analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*domain.AnalysisResult, error)
}

// CacheInvalidator removes a short code's cached projection.
type CacheInvalidator interface {
	Delete(ctx context.Context, code string) error
}

// AutoFiler places a link in its owner's system collection for a category.
type AutoFiler interface {
	AutoFile(ctx context.Context, link *domain.Link, category string) error
}

// finishTimeout bounds the detached status writes that close out a job.
const finishTimeout = 5 * time.Second

// finishContext detaches from cancellation while keeping ctx's values, so
// a claimed job's closing writes survive shutdown but cannot hang it.
func finishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

// Worker polls the queue and processes analysis jobs with a bounded pool.
type Worker struct {
	queue    JobQueue
	links    LinkStore
	fetcher  ContentFetcher
	analyzer Analyzer
	cache    CacheInvalidator
	filer    AutoFiler
	cfg      config.QueueConfig
	log      logger.Logger

	wg sync.WaitGroup
}

// New creates a worker.
func New(
	queue JobQueue,
	links LinkStore,
	fetcher ContentFetcher,
	analyzer Analyzer,
	cache CacheInvalidator,
	filer AutoFiler,
	cfg config.QueueConfig,
	log logger.Logger,
) *Worker {
	return &Worker{
		queue:    queue,
		links:    links,
		fetcher:  fetcher,
		analyzer: analyzer,
		cache:    cache,
		filer:    filer,
		cfg:      cfg,
		log:      log,
	}
}

// Start launches the poll loop and the stale-job sweeper. Both stop when
// ctx is cancelled; Wait blocks until in-flight jobs finish.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.pollLoop(ctx)
	go w.sweepLoop(ctx)
}

// Wait blocks until the worker's loops have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	w.log.Info("Analysis worker started",
		logger.Int("concurrency", w.cfg.Concurrency),
		logger.Duration("poll_interval", w.cfg.PollInterval),
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Analysis worker stopping")
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

// pollOnce claims up to a batch of jobs and processes them concurrently.
func (w *Worker) pollOnce(ctx context.Context) {
	jobs, err := w.queue.Claim(ctx, w.cfg.Concurrency)
	if err != nil {
		w.log.Error("Failed to claim jobs", logger.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	var batch sync.WaitGroup
	for i := range jobs {
		job := jobs[i]
		batch.Add(1)
		go func() {
			defer batch.Done()
			w.process(ctx, &job)
		}()
	}
	batch.Wait()
}

func (w *Worker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.StaleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reset, err := w.queue.ResetStale(ctx, w.cfg.StaleAfter)
			if err != nil {
				w.log.Error("Failed to reset stale jobs", logger.Error(err))
				continue
			}
			if reset > 0 {
				w.log.Warn("Requeued stale running jobs", logger.Int64("count", reset))
			}
		}
	}
}

// process runs one job through the pipeline. Fetch failures never fail the
// job; they degrade to the fallback result. Analysis failures fail the job
// for redelivery, marking the link failed so its state is observable while
// retries are pending.
func (w *Worker) process(ctx context.Context, job *domain.AnalysisJob) {
	log := w.log.With(
		logger.String("job_id", job.ID),
		logger.String("link_id", job.LinkID),
	)

	link, err := w.links.GetByID(ctx, job.LinkID)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			// Redelivery cannot resurrect a deleted link.
			log.Warn("Link gone, failing job terminally")
			w.markTerminal(ctx, job, "link no longer exists", log)
			return
		}
		w.markFailed(ctx, job, fmt.Sprintf("load link: %v", err), log)
		return
	}

	content, err := w.fetcher.Fetch(ctx, link.DestinationURL)
	if err != nil {
		// Fetch contract returns absence, not errors, for unreachable
		// destinations; an actual error here is still not worth a retry
		// cycle of its own.
		log.Warn("Fetch errored, analyzing without content", logger.Error(err))
		content = ""
	}

	result, err := w.analyzer.Analyze(ctx, content)
	if err != nil {
		w.markFailed(ctx, job, fmt.Sprintf("analyze: %v", err), log)
		return
	}

	// Finishing writes run detached from shutdown cancellation so a claimed
	// job's final status lands even when the poll context died mid-flight.
	fctx, cancel := finishContext(ctx)
	defer cancel()

	if err := w.persist(fctx, link, result); err != nil {
		w.markFailed(ctx, job, fmt.Sprintf("persist: %v", err), log)
		return
	}

	if err := w.queue.MarkCompleted(fctx, job.ID); err != nil {
		// The link already carries the result; a redelivered job will
		// rewrite it idempotently.
		log.Error("Failed to mark job completed", logger.Error(err))
		return
	}

	metrics.JobsProcessedTotal.WithLabelValues(metrics.JobOutcomeCompleted).Inc()
	log.Info("Analysis completed",
		logger.Int("safety_rating", result.Safety.Rating),
		logger.String("category", result.Classification.Category),
	)
}

// persist writes the result, invalidates the cached projection, and files
// the link in its category's system collection. Filing failures are logged
// only; the analysis result stands.
func (w *Worker) persist(ctx context.Context, link *domain.Link, result *domain.AnalysisResult) error {
	if err := w.links.UpdateAnalysis(ctx, link.ID, result, domain.AnalysisCompleted); err != nil {
		return err
	}

	if err := w.cache.Delete(ctx, link.ShortCode); err != nil {
		w.log.Warn("Failed to invalidate cached projection after analysis",
			logger.String("code", link.ShortCode),
			logger.Error(err),
		)
	}

	if err := w.filer.AutoFile(ctx, link, result.Classification.Category); err != nil {
		w.log.Warn("Failed to auto-file link into system collection",
			logger.String("link_id", link.ID),
			logger.String("category", result.Classification.Category),
			logger.Error(err),
		)
	}
	return nil
}

// markFailed records a failed attempt. The link is marked failed so its
// analysis state is observable; a later successful redelivery overwrites it.
func (w *Worker) markFailed(ctx context.Context, job *domain.AnalysisJob, msg string, log logger.Logger) {
	fctx, cancel := finishContext(ctx)
	defer cancel()

	if err := w.links.SetAnalysisStatus(fctx, job.LinkID, domain.AnalysisFailed); err != nil &&
		!errors.Is(err, domain.ErrLinkNotFound) {
		log.Error("Failed to mark link analysis failed", logger.Error(err))
	}

	exhausted, err := w.queue.MarkFailed(fctx, job.ID, msg)
	if err != nil {
		log.Error("Failed to record job failure", logger.Error(err))
		return
	}

	if exhausted {
		metrics.JobsProcessedTotal.WithLabelValues(metrics.JobOutcomeTerminal).Inc()
		log.Error("Job exhausted retries", logger.String("last_error", msg))
		return
	}
	metrics.JobsProcessedTotal.WithLabelValues(metrics.JobOutcomeRetried).Inc()
	log.Warn("Job failed, scheduled for redelivery",
		logger.Int("retry_count", job.RetryCount+1),
		logger.String("error", msg),
	)
}

func (w *Worker) markTerminal(ctx context.Context, job *domain.AnalysisJob, msg string, log logger.Logger) {
	fctx, cancel := finishContext(ctx)
	defer cancel()

	if err := w.queue.MarkTerminal(fctx, job.ID, msg); err != nil {
		log.Error("Failed to mark job terminal", logger.Error(err))
		return
	}
	metrics.JobsProcessedTotal.WithLabelValues(metrics.JobOutcomeTerminal).Inc()
}
