//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/domain/ports/repository"
)

// mockRedisClient is a map-backed stand-in for the Redis wrapper. TTLs are
// recorded but never enforced.
type mockRedisClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	gets, sets, dels int
	GetFunc          func(ctx context.Context, key string) (string, error)
	SetFunc          func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	return nil
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 1, nil // not used by the cache decorator
}

func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = expiration
	return nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dels++
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *mockRedisClient) Close() error { return nil }

func (m *mockRedisClient) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// mockInnerRepo counts calls and serves records from a map. Func fields
// override individual methods.
type mockInnerRepo struct {
	mu    sync.Mutex
	codes map[string]*model.SignupCode

	findByCodeCalls int
	incrementCalls  int

	FindByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error)
}

func newMockInnerRepo() *mockInnerRepo {
	return &mockInnerRepo{codes: make(map[string]*model.SignupCode)}
}

func (m *mockInnerRepo) seed(c *model.SignupCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[c.Code] = &cp
}

func (m *mockInnerRepo) Create(ctx context.Context, tx repository.Tx, c *model.SignupCode) error {
	m.seed(c)
	return nil
}

func (m *mockInnerRepo) FindEligible(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok || !c.Eligible(time.Now()) {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockInnerRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, code string, expectedMaxUsages int) (*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCalls++
	c, ok := m.codes[code]
	if !ok || !c.Eligible(time.Now()) {
		return nil, domain.ErrNotFound
	}
	c.CurrentUsages++
	cp := *c
	return &cp, nil
}

func (m *mockInnerRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[code]; ok {
		c.IsActive = false
	}
	return nil
}

func (m *mockInnerRepo) UpdateAdmin(ctx context.Context, tx repository.Tx, code string, patch model.AdminPatch) (*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.MaxUsages != nil {
		c.MaxUsages = *patch.MaxUsages
		if c.CurrentUsages > c.MaxUsages {
			c.CurrentUsages = c.MaxUsages
		}
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if patch.ClearExpiresAt {
		c.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		t := *patch.ExpiresAt
		c.ExpiresAt = &t
	}
	cp := *c
	return &cp, nil
}

func (m *mockInnerRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByCodeCalls++
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	c, ok := m.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockInnerRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.SignupCode, 0, len(m.codes))
	for _, c := range m.codes {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockInnerRepo) RecordRedemption(ctx context.Context, tx repository.Tx, r *model.Redemption) error {
	return nil
}

func (m *mockInnerRepo) DeactivateExpired(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now()
	for _, c := range m.codes {
		if c.IsActive && c.Expired(now) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}
