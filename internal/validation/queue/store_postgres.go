package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
)

const jobColumns = `id, document_id, status, attempt, max_attempts, next_run_at,
	started_at, completed_at, error_message, error_details, created_at, updated_at`

// PostgresJobStore persists jobs in the validation_jobs table.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

func (s *PostgresJobStore) Enqueue(ctx context.Context, job *models.ValidationJob) error {
	// The partial unique index on (document_id) WHERE status IN
	// ('pending','processing') enforces the one-active-job invariant.
	query := `
		INSERT INTO validation_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (document_id) WHERE status IN ('pending','processing') DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, job.DocumentID, job.Status, job.Attempt, job.MaxAttempts, job.NextRunAt,
		job.StartedAt, job.CompletedAt, job.ErrorMessage, detailsJSON(job.ErrorDetails),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue validation job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// ClaimDue is the atomic claim: the conditional UPDATE with SKIP LOCKED
// guarantees two concurrent worker invocations never own the same job.
func (s *PostgresJobStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ValidationJob, error) {
	query := `
		WITH due AS (
			SELECT id FROM validation_jobs
			WHERE status = 'pending' AND next_run_at <= $1
			ORDER BY next_run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE validation_jobs j
		SET status = 'processing', started_at = $1, updated_at = $1
		FROM due
		WHERE j.id = due.id
		RETURNING j.id, j.document_id, j.status, j.attempt, j.max_attempts, j.next_run_at,
			j.started_at, j.completed_at, j.error_message, j.error_details, j.created_at, j.updated_at
	`
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var claimed []*models.ValidationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	// RETURNING does not preserve the CTE's ordering.
	sortByNextRun(claimed)
	return claimed, nil
}

func (s *PostgresJobStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	query := `
		UPDATE validation_jobs
		SET status = 'completed', completed_at = $2, updated_at = $2,
			error_message = '', error_details = NULL
		WHERE id = $1 AND status = 'processing'
	`
	return s.execOne(ctx, query, jobID, at)
}

func (s *PostgresJobStore) Reschedule(ctx context.Context, jobID uuid.UUID, attempt int, at, nextRunAt time.Time, errMsg string, details map[string]any) error {
	query := `
		UPDATE validation_jobs
		SET status = 'pending', attempt = $2, next_run_at = $3,
			error_message = $4, error_details = $5, updated_at = $6
		WHERE id = $1 AND status = 'processing'
	`
	return s.execOne(ctx, query, jobID, attempt, nextRunAt, errMsg, detailsJSON(details), at)
}

func (s *PostgresJobStore) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID, attempt int, at time.Time, errMsg string, details map[string]any) error {
	query := `
		UPDATE validation_jobs
		SET status = 'dead_letter', attempt = $2, completed_at = $3,
			error_message = $4, error_details = $5, updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`
	return s.execOne(ctx, query, jobID, attempt, at, errMsg, detailsJSON(details))
}

func (s *PostgresJobStore) Get(ctx context.Context, jobID uuid.UUID) (*models.ValidationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM validation_jobs WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return job, err
}

func (s *PostgresJobStore) ListDeadLetter(ctx context.Context, limit int) ([]*models.ValidationJob, error) {
	query := `
		SELECT ` + jobColumns + ` FROM validation_jobs
		WHERE status = 'dead_letter'
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letter jobs: %w", err)
	}
	defer rows.Close()

	var dead []*models.ValidationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		dead = append(dead, job)
	}
	return dead, rows.Err()
}

func (s *PostgresJobStore) RequeueDeadLetter(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	query := `
		UPDATE validation_jobs
		SET status = 'pending', attempt = 0, next_run_at = $2,
			started_at = NULL, completed_at = NULL,
			error_message = '', error_details = NULL, updated_at = $2
		WHERE id = $1 AND status = 'dead_letter'
	`
	err := s.execOne(ctx, query, jobID, now)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Distinguish a missing job from one in the wrong state.
		if _, getErr := s.Get(ctx, jobID); getErr == nil {
			return sentinel.ErrInvalidState
		}
	}
	return err
}

func (s *PostgresJobStore) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update validation job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*models.ValidationJob, error) {
	var job models.ValidationJob
	var details []byte
	err := row.Scan(
		&job.ID, &job.DocumentID, &job.Status, &job.Attempt, &job.MaxAttempts, &job.NextRunAt,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &details, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &job.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode job error details: %w", err)
		}
	}
	return &job, nil
}

func detailsJSON(details map[string]any) []byte {
	if details == nil {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return raw
}

func sortByNextRun(jobs []*models.ValidationJob) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].NextRunAt.Before(jobs[j].NextRunAt) })
}
