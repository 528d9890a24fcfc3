package authenticity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// hashRetention bounds how long a content hash stays indexed. Documents older
// than this are stale enough that a resubmission deserves a fresh look rather
// than an automatic duplicate flag.
const hashRetention = 180 * 24 * time.Hour

// RedisHashIndex stores content hashes in Redis, shared across instances.
type RedisHashIndex struct {
	client redis.Cmdable
}

func NewRedisHashIndex(client redis.Cmdable) *RedisHashIndex {
	return &RedisHashIndex{client: client}
}

func (i *RedisHashIndex) Put(ctx context.Context, orgID uuid.UUID, hash string, documentID uuid.UUID) (*uuid.UUID, error) {
	key := fmt.Sprintf("docgate:dup:%s:%s", orgID, hash)

	set, err := i.client.SetNX(ctx, key, documentID.String(), hashRetention).Result()
	if err != nil {
		return nil, fmt.Errorf("hash index setnx: %w", err)
	}
	if set {
		return nil, nil
	}

	raw, err := i.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired between SetNX and Get; treat as first sighting.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hash index get: %w", err)
	}

	existing, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("hash index holds malformed document id %q: %w", raw, err)
	}
	return &existing, nil
}
