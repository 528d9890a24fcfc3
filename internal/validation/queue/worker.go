package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docgate/internal/platform/config"
	"docgate/internal/validation/metrics"
	"docgate/internal/validation/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/requestcontext"
)

// Pipeline is the validation pipeline as the worker sees it.
type Pipeline interface {
	Run(ctx context.Context, documentID uuid.UUID) (*models.DocumentValidation, error)
}

// maxConcurrentJobs bounds per-batch parallelism so a large batch cannot
// open that many model calls at once.
const maxConcurrentJobs = 4

// Worker claims due jobs in bounded batches and drives the pipeline, feeding
// failures back into the retry/dead-letter state machine.
type Worker struct {
	jobs       JobStore
	pipeline   Pipeline
	cfg        config.Worker
	jobTimeout time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithJobTimeout bounds one job's pipeline run, stages included.
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) { w.jobTimeout = d }
}

// New constructs a Worker.
func New(jobs JobStore, pipeline Pipeline, cfg config.Worker, opts ...Option) *Worker {
	w := &Worker{
		jobs:       jobs,
		pipeline:   pipeline,
		cfg:        cfg,
		jobTimeout: 90 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue creates a pending job for the document, due immediately.
func (w *Worker) Enqueue(ctx context.Context, documentID uuid.UUID) (*models.ValidationJob, error) {
	job := models.NewValidationJob(documentID, requestcontext.Now(ctx))
	if w.cfg.MaxAttempts > 0 {
		job.MaxAttempts = w.cfg.MaxAttempts
	}
	if err := w.jobs.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListDeadLetter returns the most recently dead-lettered jobs.
func (w *Worker) ListDeadLetter(ctx context.Context, limit int) ([]*models.ValidationJob, error) {
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}
	return w.jobs.ListDeadLetter(ctx, limit)
}

// RequeueDeadLetter puts a dead-lettered job back on the queue with a fresh
// retry budget.
func (w *Worker) RequeueDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	return w.jobs.RequeueDeadLetter(ctx, jobID, requestcontext.Now(ctx))
}

// ProcessBatch claims up to batchSize due jobs and runs them concurrently,
// each under its own timeout. Jobs fail independently; the batch summary is
// the only aggregate. batchSize <= 0 falls back to the configured default.
func (w *Worker) ProcessBatch(ctx context.Context, batchSize int) (models.BatchSummary, error) {
	if batchSize <= 0 {
		batchSize = w.cfg.BatchSize
	}
	now := requestcontext.Now(ctx)

	claimed, err := w.jobs.ClaimDue(ctx, now, batchSize)
	if err != nil {
		return models.BatchSummary{}, dErrors.Wrap(err, dErrors.CodePersistence, "claim due jobs")
	}

	var (
		mu      sync.Mutex
		summary models.BatchSummary
	)
	summary.Processed = len(claimed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentJobs)
	for _, job := range claimed {
		g.Go(func() error {
			outcome, jobErr := w.runJob(gctx, job)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeCompleted:
				summary.Completed++
			case outcomeRescheduled:
				summary.Failed++
			case outcomeDeadLettered:
				summary.Failed++
				summary.MovedToDLQ++
			}
			if jobErr != nil {
				summary.Errors = append(summary.Errors, job.DocumentID.String()+": "+jobErr.Error())
			}
			return nil
		})
	}
	// Job errors are accounted in the summary, never propagated.
	_ = g.Wait()

	w.logger.InfoContext(ctx, "batch processed",
		"processed", summary.Processed,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"moved_to_dlq", summary.MovedToDLQ,
	)
	return summary, nil
}

// Run invokes ProcessBatch on the configured interval until ctx is done.
// Deployments that schedule the worker externally call ProcessBatch directly.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx, w.cfg.BatchSize); err != nil {
				w.logger.ErrorContext(ctx, "batch processing failed", "error", err)
			}
		}
	}
}

type jobOutcome int

const (
	outcomeCompleted jobOutcome = iota
	outcomeRescheduled
	outcomeDeadLettered
)

func (w *Worker) runJob(ctx context.Context, job *models.ValidationJob) (jobOutcome, error) {
	if w.metrics != nil {
		w.metrics.JobsProcessed.Inc()
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	_, err := w.pipeline.Run(jobCtx, job.DocumentID)
	now := requestcontext.Now(ctx)

	if err == nil {
		if markErr := w.jobs.MarkCompleted(ctx, job.ID, now); markErr != nil {
			w.logger.ErrorContext(ctx, "mark job completed failed", "job_id", job.ID, "error", markErr)
			return outcomeCompleted, markErr
		}
		if w.metrics != nil {
			w.metrics.JobsCompleted.Inc()
		}
		w.logger.InfoContext(ctx, "job completed", "job_id", job.ID, "document_id", job.DocumentID)
		return outcomeCompleted, nil
	}

	attempt := job.Attempt + 1
	details := map[string]any{
		"error":       err.Error(),
		"code":        string(dErrors.CodeOf(err)),
		"attempt":     attempt,
		"document_id": job.DocumentID.String(),
	}

	// Fatal errors skip the retry budget: reattempting a missing API key or
	// an unknown document cannot succeed.
	if attempt >= job.MaxAttempts || !dErrors.Retryable(err) {
		if dlErr := w.jobs.MoveToDeadLetter(ctx, job.ID, attempt, now, err.Error(), details); dlErr != nil {
			w.logger.ErrorContext(ctx, "move to dead letter failed", "job_id", job.ID, "error", dlErr)
			return outcomeDeadLettered, dlErr
		}
		if w.metrics != nil {
			w.metrics.JobsDeadLettered.Inc()
		}
		w.logger.WarnContext(ctx, "job dead-lettered",
			"job_id", job.ID,
			"document_id", job.DocumentID,
			"attempt", attempt,
			"max_attempts", job.MaxAttempts,
			"error", err,
		)
		return outcomeDeadLettered, err
	}

	nextRun := now.Add(Backoff(attempt, w.cfg.BackoffBase, w.cfg.BackoffCap))
	if resErr := w.jobs.Reschedule(ctx, job.ID, attempt, now, nextRun, err.Error(), details); resErr != nil {
		w.logger.ErrorContext(ctx, "reschedule failed", "job_id", job.ID, "error", resErr)
		return outcomeRescheduled, resErr
	}
	if w.metrics != nil {
		w.metrics.JobsRescheduled.Inc()
	}
	w.logger.WarnContext(ctx, "job rescheduled",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"attempt", attempt,
		"next_run_at", nextRun,
		"error", err,
	)
	return outcomeRescheduled, err
}
