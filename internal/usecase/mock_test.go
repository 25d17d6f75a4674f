//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/domain/ports/repository"
)

// =============================
// In-memory SignupCodeRepository
// =============================

// memCodeRepo is a small in-memory implementation used by unit tests.
// Its ConditionalIncrement mirrors the store contract: the eligibility
// predicate and the increment happen under one lock acquisition, so
// concurrent test goroutines race exactly the way real callers do against
// the database's conditional update.
type memCodeRepo struct {
	mu          sync.Mutex
	store       map[string]*model.SignupCode
	redemptions []*model.Redemption

	// call counters for "no store access" assertions
	findEligibleCalls int
	incrementCalls    int

	// overrides used by tests to simulate failures
	CreateFunc               func(ctx context.Context, tx repository.Tx, c *model.SignupCode) error
	FindEligibleFunc         func(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error)
	ConditionalIncrementFunc func(ctx context.Context, tx repository.Tx, code string, expectedMaxUsages int) (*model.SignupCode, error)
	DeactivateFunc           func(ctx context.Context, tx repository.Tx, code string) error
	UpdateAdminFunc          func(ctx context.Context, tx repository.Tx, code string, patch model.AdminPatch) (*model.SignupCode, error)
	RecordRedemptionFunc     func(ctx context.Context, tx repository.Tx, r *model.Redemption) error
}

var _ repository.SignupCodeRepository = (*memCodeRepo)(nil)

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{store: make(map[string]*model.SignupCode)}
}

// seed inserts a record directly, bypassing Create overrides.
func (m *memCodeRepo) seed(c *model.SignupCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.store[cp.Code] = &cp
}

// snapshot returns a copy of the stored record.
func (m *memCodeRepo) snapshot(code string) *model.SignupCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (m *memCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.SignupCode) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[c.Code]; exists {
		return domain.ErrDuplicateCode
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	m.store[c.Code] = &cp
	return nil
}

func (m *memCodeRepo) FindEligible(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	m.mu.Lock()
	m.findEligibleCalls++
	m.mu.Unlock()
	if m.FindEligibleFunc != nil {
		return m.FindEligibleFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok || !c.Eligible(time.Now()) {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, code string, expectedMaxUsages int) (*model.SignupCode, error) {
	m.mu.Lock()
	m.incrementCalls++
	m.mu.Unlock()
	if m.ConditionalIncrementFunc != nil {
		return m.ConditionalIncrementFunc(ctx, tx, code, expectedMaxUsages)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok || !c.IsActive || c.Expired(time.Now()) || c.CurrentUsages >= expectedMaxUsages {
		return nil, domain.ErrNotFound
	}
	c.CurrentUsages++
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.store[code]; ok {
		c.IsActive = false
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memCodeRepo) UpdateAdmin(ctx context.Context, tx repository.Tx, code string, patch model.AdminPatch) (*model.SignupCode, error) {
	if m.UpdateAdminFunc != nil {
		return m.UpdateAdminFunc(ctx, tx, code, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
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
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.SignupCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SignupCode
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCodeRepo) RecordRedemption(ctx context.Context, tx repository.Tx, r *model.Redemption) error {
	if m.RecordRedemptionFunc != nil {
		return m.RecordRedemptionFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.redemptions = append(m.redemptions, &cp)
	return nil
}

func (m *memCodeRepo) DeactivateExpired(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, c := range m.store {
		if c.IsActive && c.Expired(now) {
			c.IsActive = false
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memCodeRepo) calls() (findEligible, increment int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findEligibleCalls, m.incrementCalls
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the callback immediately with NoTX unless a test installs
// its own behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
