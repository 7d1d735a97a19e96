package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/gangwalparul19/rupiya-sync/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// QueueStore persists the ordered set of queued operations so that pending
// work survives process restarts. Implementations have no network access to
// the document store and no side effects beyond the persistence medium.
type QueueStore interface {
	// Append adds a new pending record to the persisted snapshot.
	Append(ctx context.Context, op *models.Operation) error
	// LoadAll returns all persisted records in insertion order, or nil when
	// nothing has been persisted yet.
	LoadAll(ctx context.Context) ([]*models.Operation, error)
	// Save atomically replaces the persisted snapshot.
	Save(ctx context.Context, ops []*models.Operation) error
	// Remove drops a single record by ID.
	Remove(ctx context.Context, id string) error
}

// RedisQueueStore keeps the queue snapshot as a single JSON value in Redis.
// The snapshot is replaced wholesale with SET, which is atomic, so readers
// never observe a partially written queue. A write mutex serializes the
// read-modify-write in Append and Remove against concurrent Saves, so no
// write can overwrite another's record within this process.
type RedisQueueStore struct {
	redis  *redisclient.Client
	key    string
	mu     sync.Mutex
	logger *logging.SafeLogger
}

// NewRedisQueueStore creates a queue store persisting under the given key
func NewRedisQueueStore(client *redisclient.Client, key string, logger *logging.SafeLogger) *RedisQueueStore {
	return &RedisQueueStore{
		redis:  client,
		key:    key,
		logger: logger,
	}
}

// Append adds a record to the end of the persisted snapshot
func (s *RedisQueueStore) Append(ctx context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queue snapshot: %w", err)
	}

	ops = append(ops, op)
	return s.save(ctx, ops)
}

// LoadAll returns the persisted snapshot in insertion order
func (s *RedisQueueStore) LoadAll(ctx context.Context) ([]*models.Operation, error) {
	data, err := s.redis.Get(ctx, s.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue snapshot: %w", err)
	}

	var ops []*models.Operation
	if err := json.Unmarshal([]byte(data), &ops); err != nil {
		return nil, fmt.Errorf("failed to decode queue snapshot: %w", err)
	}

	return ops, nil
}

// Save replaces the persisted snapshot with the given list
func (s *RedisQueueStore) Save(ctx context.Context, ops []*models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, ops)
}

func (s *RedisQueueStore) save(ctx context.Context, ops []*models.Operation) error {
	if ops == nil {
		ops = []*models.Operation{}
	}

	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, s.key, string(data), 0).Err(); err != nil {
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}

	s.logger.Debug("queue snapshot saved",
		zap.String("key", s.key),
		zap.Int("records", len(ops)))

	return nil
}

// Remove drops a single record from the persisted snapshot
func (s *RedisQueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queue snapshot: %w", err)
	}

	kept := ops[:0]
	for _, op := range ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}

	return s.save(ctx, kept)
}

// MemoryQueueStore is an in-memory QueueStore. It backs unit tests and is
// the documented fallback when no durable medium is available; queued work
// then lives only for the current process.
type MemoryQueueStore struct {
	mu  sync.Mutex
	ops []*models.Operation

	// failure injection for tests
	saveErr error
}

// NewMemoryQueueStore creates an empty in-memory queue store
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{}
}

// Append adds a record to the in-memory snapshot
func (s *MemoryQueueStore) Append(ctx context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *op
	s.ops = append(s.ops, &clone)
	return nil
}

// LoadAll returns the records in insertion order
func (s *MemoryQueueStore) LoadAll(ctx context.Context) ([]*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ops == nil {
		return nil, nil
	}

	out := make([]*models.Operation, len(s.ops))
	for i, op := range s.ops {
		clone := *op
		out[i] = &clone
	}
	return out, nil
}

// Save replaces the in-memory snapshot
func (s *MemoryQueueStore) Save(ctx context.Context, ops []*models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}

	s.ops = make([]*models.Operation, len(ops))
	for i, op := range ops {
		clone := *op
		s.ops[i] = &clone
	}
	return nil
}

// Remove drops a single record by ID
func (s *MemoryQueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.ops[:0]
	for _, op := range s.ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	s.ops = kept
	return nil
}
