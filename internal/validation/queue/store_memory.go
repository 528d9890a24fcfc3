package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
)

// InMemoryJobStore keeps jobs in process memory. The claim is a mutexed
// test-and-set, mirroring the conditional UPDATE the postgres store does.
type InMemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.ValidationJob
}

func NewInMemory() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[uuid.UUID]*models.ValidationJob)}
}

func (s *InMemoryJobStore) Enqueue(_ context.Context, job *models.ValidationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.DocumentID == job.DocumentID &&
			(existing.Status == models.JobPending || existing.Status == models.JobProcessing) {
			return sentinel.ErrConflict
		}
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *InMemoryJobStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.ValidationJob
	for _, job := range s.jobs {
		if job.Status == models.JobPending && !job.NextRunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*models.ValidationJob, 0, len(due))
	for _, job := range due {
		started := now
		job.Status = models.JobProcessing
		job.StartedAt = &started
		job.UpdatedAt = now
		copied := *job
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (s *InMemoryJobStore) MarkCompleted(_ context.Context, jobID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return sentinel.ErrNotFound
	}
	job.Status = models.JobCompleted
	job.CompletedAt = &at
	job.UpdatedAt = at
	job.ErrorMessage = ""
	job.ErrorDetails = nil
	return nil
}

func (s *InMemoryJobStore) Reschedule(_ context.Context, jobID uuid.UUID, attempt int, at, nextRunAt time.Time, errMsg string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return sentinel.ErrNotFound
	}
	job.Status = models.JobPending
	job.Attempt = attempt
	job.NextRunAt = nextRunAt
	job.ErrorMessage = errMsg
	job.ErrorDetails = details
	job.UpdatedAt = at
	return nil
}

func (s *InMemoryJobStore) MoveToDeadLetter(_ context.Context, jobID uuid.UUID, attempt int, at time.Time, errMsg string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return sentinel.ErrNotFound
	}
	job.Status = models.JobDeadLetter
	job.Attempt = attempt
	job.CompletedAt = &at
	job.ErrorMessage = errMsg
	job.ErrorDetails = details
	job.UpdatedAt = at
	return nil
}

func (s *InMemoryJobStore) Get(_ context.Context, jobID uuid.UUID) (*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *InMemoryJobStore) ListDeadLetter(_ context.Context, limit int) ([]*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dead []*models.ValidationJob
	for _, job := range s.jobs {
		if job.Status == models.JobDeadLetter {
			copied := *job
			dead = append(dead, &copied)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].UpdatedAt.After(dead[j].UpdatedAt) })
	if len(dead) > limit {
		dead = dead[:limit]
	}
	return dead, nil
}

func (s *InMemoryJobStore) RequeueDeadLetter(_ context.Context, jobID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if job.Status != models.JobDeadLetter {
		return sentinel.ErrInvalidState
	}
	job.Status = models.JobPending
	job.Attempt = 0
	job.NextRunAt = now
	job.StartedAt = nil
	job.CompletedAt = nil
	job.ErrorMessage = ""
	job.ErrorDetails = nil
	job.UpdatedAt = now
	return nil
}
