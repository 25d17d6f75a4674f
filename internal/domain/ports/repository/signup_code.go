package repository

import (
	"context"

	"signup-code-service/internal/domain/model"
)

// SignupCodeRepository is the port for durable signup-code records.
//
// ConditionalIncrement is the correctness-bearing operation: the capacity
// check and the increment happen in one atomic store-side write. A
// read-check-then-write pair here would let concurrent redeemers overshoot
// the ceiling.
type SignupCodeRepository interface {
	// Create inserts a new code record. Returns domain.ErrDuplicateCode when
	// the code value is already taken.
	Create(ctx context.Context, tx Tx, code *model.SignupCode) error

	// FindEligible returns the record for code only if it is currently
	// redeemable (active, not expired, under capacity). Any other state
	// (missing, inactive, expired, exhausted) is domain.ErrNotFound.
	FindEligible(ctx context.Context, tx Tx, code string) (*model.SignupCode, error)

	// ConditionalIncrement atomically bumps current_usages by one, but only
	// while the record still matches code, is active, is not expired, and
	// current_usages < expectedMaxUsages at the moment of the write. Returns
	// the post-increment record, or domain.ErrNotFound when the predicate
	// failed at write time (a concurrent redemption, expiry, or deactivation
	// won the race).
	ConditionalIncrement(ctx context.Context, tx Tx, code string, expectedMaxUsages int) (*model.SignupCode, error)

	// Deactivate unconditionally sets is_active = false. Idempotent.
	Deactivate(ctx context.Context, tx Tx, code string) error

	// UpdateAdmin applies a partial administrative update. Returns
	// domain.ErrNotFound when the code does not exist.
	UpdateAdmin(ctx context.Context, tx Tx, code string, patch model.AdminPatch) (*model.SignupCode, error)

	// FindByCode is the unfiltered status read for administrative callers.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.SignupCode, error)

	// List returns codes newest-first for dashboards.
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.SignupCode, error)

	// RecordRedemption appends one usage-audit row.
	RecordRedemption(ctx context.Context, tx Tx, r *model.Redemption) error

	// DeactivateExpired soft-retires every active code whose expiry has
	// passed and reports how many rows changed.
	DeactivateExpired(ctx context.Context, tx Tx) (int, error)
}
