package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/domain/ports/repository"
	"signup-code-service/internal/infra/metrics"
)

// Ensure implementation satisfies the interface.
var _ repository.SignupCodeRepository = (*signupCodeRepo)(nil)

type signupCodeRepo struct {
	pool *pgxpool.Pool
}

func NewSignupCodeRepo(pool *pgxpool.Pool) repository.SignupCodeRepository {
	return &signupCodeRepo{pool: pool}
}

const signupCodeColumns = `id, code, max_usages, current_usages, is_active, created_by, expires_at, created_at, updated_at`

func scanSignupCode(row pgx.Row) (*model.SignupCode, error) {
	var c model.SignupCode
	err := row.Scan(
		&c.ID, &c.Code, &c.MaxUsages, &c.CurrentUsages, &c.IsActive,
		&c.CreatedBy, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		metrics.IncDBError("scan")
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *signupCodeRepo) Create(ctx context.Context, tx repository.Tx, code *model.SignupCode) error {
	const q = `
INSERT INTO signup_codes (id, code, max_usages, current_usages, is_active, created_by, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at;
`
	row, err := pickRow(ctx, r.pool, tx, q,
		code.ID, code.Code, code.MaxUsages, code.CurrentUsages, code.IsActive, code.CreatedBy, code.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if err := row.Scan(&code.CreatedAt, &code.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateCode
		}
		metrics.IncDBError("create")
		return err
	}
	return nil
}

// FindEligible applies the full eligibility predicate in SQL so that
// ineligible states (missing, inactive, expired, exhausted) are all the
// same ErrNotFound from the caller's point of view.
func (r *signupCodeRepo) FindEligible(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	const q = `
SELECT ` + signupCodeColumns + `
  FROM signup_codes
 WHERE code = $1
   AND is_active
   AND (expires_at IS NULL OR expires_at > now())
   AND current_usages < max_usages;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanSignupCode(row)
}

// ConditionalIncrement is the single correctness-bearing write: the
// eligibility predicate is re-evaluated inside the same UPDATE that bumps
// the counter, so exactly one of N racing redeemers can take the last slot.
func (r *signupCodeRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, code string, expectedMaxUsages int) (*model.SignupCode, error) {
	const q = `
UPDATE signup_codes
   SET current_usages = current_usages + 1,
       updated_at = now()
 WHERE code = $1
   AND is_active
   AND (expires_at IS NULL OR expires_at > now())
   AND current_usages < $2
RETURNING ` + signupCodeColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, code, expectedMaxUsages)
	if err != nil {
		return nil, err
	}
	return scanSignupCode(row)
}

func (r *signupCodeRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) error {
	const q = `
UPDATE signup_codes
   SET is_active = FALSE,
       updated_at = now()
 WHERE code = $1;
`
	_, err := execSQL(ctx, r.pool, tx, q, code)
	if err != nil {
		metrics.IncDBError("deactivate")
	}
	return err
}

// UpdateAdmin patches administrative fields in one statement. Lowering
// max_usages below current_usages clamps the counter down so the stored
// invariant stays visually consistent; the capacity predicate would reject
// further redemptions either way.
func (r *signupCodeRepo) UpdateAdmin(ctx context.Context, tx repository.Tx, code string, patch model.AdminPatch) (*model.SignupCode, error) {
	const q = `
UPDATE signup_codes
   SET max_usages = COALESCE($2::int, max_usages),
       current_usages = LEAST(current_usages, COALESCE($2::int, max_usages)),
       is_active = COALESCE($3::boolean, is_active),
       expires_at = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($4::timestamptz, expires_at) END,
       updated_at = now()
 WHERE code = $1
RETURNING ` + signupCodeColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, code, patch.MaxUsages, patch.IsActive, patch.ExpiresAt, patch.ClearExpiresAt)
	if err != nil {
		return nil, err
	}
	return scanSignupCode(row)
}

func (r *signupCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.SignupCode, error) {
	const q = `
SELECT ` + signupCodeColumns + `
  FROM signup_codes
 WHERE code = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanSignupCode(row)
}

func (r *signupCodeRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.SignupCode, error) {
	const q = `
SELECT ` + signupCodeColumns + `
  FROM signup_codes
 ORDER BY created_at DESC
OFFSET $1 LIMIT $2;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, offset, limit)
	if err != nil {
		metrics.IncDBError("list")
		return nil, err
	}
	defer rows.Close()

	var out []*model.SignupCode
	for rows.Next() {
		var c model.SignupCode
		if err := rows.Scan(
			&c.ID, &c.Code, &c.MaxUsages, &c.CurrentUsages, &c.IsActive,
			&c.CreatedBy, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			metrics.IncDBError("scan")
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *signupCodeRepo) RecordRedemption(ctx context.Context, tx repository.Tx, red *model.Redemption) error {
	const q = `
INSERT INTO signup_code_redemptions (id, code, usages_after, redeemed_at)
VALUES ($1, $2, $3, $4);
`
	if red.RedeemedAt.IsZero() {
		red.RedeemedAt = time.Now()
	}
	_, err := execSQL(ctx, r.pool, tx, q, red.ID, red.Code, red.UsagesAfter, red.RedeemedAt)
	if err != nil {
		metrics.IncDBError("record_redemption")
	}
	return err
}

func (r *signupCodeRepo) DeactivateExpired(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `
UPDATE signup_codes
   SET is_active = FALSE,
       updated_at = now()
 WHERE is_active
   AND expires_at IS NOT NULL
   AND expires_at <= now();
`
	tag, err := execSQL(ctx, r.pool, tx, q)
	if err != nil {
		metrics.IncDBError("deactivate_expired")
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
