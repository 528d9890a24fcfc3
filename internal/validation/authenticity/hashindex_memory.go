package authenticity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryHashIndex keeps content hashes per organization in process memory.
// Used in tests and deployments without Redis.
type InMemoryHashIndex struct {
	mu     sync.Mutex
	hashes map[string]uuid.UUID // "<org>/<hash>" -> first document seen
}

func NewInMemoryHashIndex() *InMemoryHashIndex {
	return &InMemoryHashIndex{hashes: make(map[string]uuid.UUID)}
}

func (i *InMemoryHashIndex) Put(_ context.Context, orgID uuid.UUID, hash string, documentID uuid.UUID) (*uuid.UUID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := orgID.String() + "/" + hash
	if existing, ok := i.hashes[key]; ok {
		return &existing, nil
	}
	i.hashes[key] = documentID
	return nil, nil
}
