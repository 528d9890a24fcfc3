package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

// InMemoryValidationStore keeps validations in process memory for tests and
// local development.
type InMemoryValidationStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.DocumentValidation
}

func NewInMemory() *InMemoryValidationStore {
	return &InMemoryValidationStore{rows: make(map[uuid.UUID]models.DocumentValidation)}
}

func (s *InMemoryValidationStore) Upsert(ctx context.Context, v *models.DocumentValidation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	row := *v
	if existing, ok := s.rows[v.DocumentID]; ok {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.rows[v.DocumentID] = row

	v.CreatedAt = row.CreatedAt
	v.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *InMemoryValidationStore) GetByDocument(_ context.Context, documentID uuid.UUID) (*models.DocumentValidation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := row
	return &out, nil
}

// Len reports the number of stored rows; used by idempotence tests.
func (s *InMemoryValidationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
