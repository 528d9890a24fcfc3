// Package queue implements the durable retry queue: job persistence, the
// claim/backoff/dead-letter state machine, and the batch worker that drives
// the validation pipeline.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
)

// JobStore persists ValidationJobs and implements the atomic claim.
type JobStore interface {
	// Enqueue creates a pending job. At most one active (pending or
	// processing) job may exist per document; a second enqueue returns
	// sentinel.ErrConflict.
	Enqueue(ctx context.Context, job *models.ValidationJob) error

	// ClaimDue atomically transitions up to limit due pending jobs to
	// processing and returns them oldest-due-first. Two concurrent callers
	// never receive the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ValidationJob, error)

	// MarkCompleted finishes a processing job.
	MarkCompleted(ctx context.Context, jobID uuid.UUID, at time.Time) error

	// Reschedule returns a processing job to pending with the incremented
	// attempt count and a later next_run_at. at is when the transition
	// happened, not when the retry is due.
	Reschedule(ctx context.Context, jobID uuid.UUID, attempt int, at, nextRunAt time.Time, errMsg string, details map[string]any) error

	// MoveToDeadLetter terminally fails a processing job, keeping the full
	// error context for operator inspection.
	MoveToDeadLetter(ctx context.Context, jobID uuid.UUID, attempt int, at time.Time, errMsg string, details map[string]any) error

	// Get returns sentinel.ErrNotFound for unknown jobs.
	Get(ctx context.Context, jobID uuid.UUID) (*models.ValidationJob, error)

	// ListDeadLetter returns dead-lettered jobs, most recently failed first.
	ListDeadLetter(ctx context.Context, limit int) ([]*models.ValidationJob, error)

	// RequeueDeadLetter resets a dead-lettered job to pending with a zero
	// attempt count, due immediately.
	RequeueDeadLetter(ctx context.Context, jobID uuid.UUID, now time.Time) error
}
