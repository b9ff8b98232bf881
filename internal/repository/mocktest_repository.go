package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neuroboost/study-core/internal/config"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/redis/go-redis/v9"
)

// MockTestStore keeps started mock tests (and their answer keys) until they are
// graded or their TTL runs out.
type MockTestStore interface {
	Save(ctx context.Context, test *model.MockTest, ttl time.Duration) error
	Get(ctx context.Context, id string) (*model.MockTest, error)
	Delete(ctx context.Context, test *model.MockTest) error
}

// ─── Redis ──────────────────────────────────────────────────────────────────

// MockTestRepository stores mock tests as JSON in Redis.
type MockTestRepository struct {
	rdb *redis.Client
}

// NewMockTestRepository creates a new MockTestRepository.
func NewMockTestRepository(rdb *redis.Client) *MockTestRepository {
	return &MockTestRepository{rdb: rdb}
}

func (r *MockTestRepository) Save(ctx context.Context, test *model.MockTest, ttl time.Duration) error {
	data, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal mock test: %w", err)
	}

	userKey := config.CacheKey.UserMockTestsKey(test.UserID)
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.MockTestKey(test.ID), data, ttl)
	pipe.SAdd(ctx, userKey, test.ID)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache mock test: %w", err)
	}
	return nil
}

func (r *MockTestRepository) Get(ctx context.Context, id string) (*model.MockTest, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.MockTestKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get mock test: %w", err)
	}

	var test model.MockTest
	if err := json.Unmarshal(data, &test); err != nil {
		return nil, fmt.Errorf("unmarshal mock test: %w", err)
	}
	return &test, nil
}

func (r *MockTestRepository) Delete(ctx context.Context, test *model.MockTest) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.MockTestKey(test.ID))
	pipe.SRem(ctx, config.CacheKey.UserMockTestsKey(test.UserID), test.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete mock test: %w", err)
	}
	return nil
}

// Sweep prunes ids of expired tests from the per-user index sets. The test
// entries themselves expire through their TTL, but a user who keeps starting
// tests keeps the set alive and its dead members with it.
func (r *MockTestRepository) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := r.rdb.Scan(ctx, 0, config.CacheKey.UserMockTestsPattern(), 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		ids, err := r.rdb.SMembers(ctx, setKey).Result()
		if err != nil {
			return removed, fmt.Errorf("list mock tests: %w", err)
		}

		var dead []interface{}
		for _, id := range ids {
			n, err := r.rdb.Exists(ctx, config.CacheKey.MockTestKey(id)).Result()
			if err != nil {
				return removed, fmt.Errorf("check mock test: %w", err)
			}
			if n == 0 {
				dead = append(dead, id)
			}
		}
		if len(dead) == 0 {
			continue
		}
		if err := r.rdb.SRem(ctx, setKey, dead...).Err(); err != nil {
			return removed, fmt.Errorf("prune mock test index: %w", err)
		}
		removed += len(dead)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan mock test indexes: %w", err)
	}
	return removed, nil
}

// ─── Memory ─────────────────────────────────────────────────────────────────

type storedMockTest struct {
	test      model.MockTest
	expiresAt time.Time
}

// MemoryMockTestRepository keeps mock tests in process memory.
type MemoryMockTestRepository struct {
	mu    sync.Mutex
	tests map[string]storedMockTest
	now   func() time.Time
}

// NewMemoryMockTestRepository creates an empty MemoryMockTestRepository.
func NewMemoryMockTestRepository() *MemoryMockTestRepository {
	return &MemoryMockTestRepository{tests: make(map[string]storedMockTest), now: time.Now}
}

func (r *MemoryMockTestRepository) Save(_ context.Context, test *model.MockTest, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.ID] = storedMockTest{test: *test, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemoryMockTestRepository) Get(_ context.Context, id string) (*model.MockTest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.now().After(st.expiresAt) {
		delete(r.tests, id)
		return nil, ErrNotFound
	}
	test := st.test
	return &test, nil
}

func (r *MemoryMockTestRepository) Delete(_ context.Context, test *model.MockTest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tests, test.ID)
	return nil
}

// Sweep drops every expired mock test and returns how many were removed.
func (r *MemoryMockTestRepository) Sweep(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, st := range r.tests {
		if now.After(st.expiresAt) {
			delete(r.tests, id)
			removed++
		}
	}
	return removed, nil
}
