package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// replayKeyTTL bounds how long a consumed uniqueKey is remembered.
// Envelopes carry no timestamp of their own, so this is a pragmatic
// cap rather than a derived value: one hour comfortably exceeds any
// plausible client-retry window.
const replayKeyTTL = time.Hour

// RedisReplayStore implements ReplayStore.Consume with a single SETNX,
// the same primitive the teacher's distributed lock uses.
type RedisReplayStore struct {
	client *redis.Client
}

func NewRedisReplayStore(client *redis.Client) *RedisReplayStore {
	return &RedisReplayStore{client: client}
}

func (s *RedisReplayStore) Consume(ctx context.Context, key string) (bool, error) {
	fresh, err := s.client.SetNX(ctx, "msig:replay:"+key, "1", replayKeyTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "replay: redis SETNX failed")
	}
	return fresh, nil
}

// MemoryReplayStore is the in-process ReplayStore used by tests and the
// demo CLI.
type MemoryReplayStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryReplayStore() *MemoryReplayStore {
	return &MemoryReplayStore{seen: map[string]bool{}}
}

func (s *MemoryReplayStore) Consume(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}
