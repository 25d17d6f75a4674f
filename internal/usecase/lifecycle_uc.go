package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/domain/ports/repository"
	"signup-code-service/internal/infra/metrics"
)

const (
	// maxUsagesCeiling mirrors the administrative validation bound.
	maxUsagesCeiling = 10000
	// generateAttempts bounds retries on a code collision.
	generateAttempts = 5

	defaultListLimit = 50
	maxListLimit     = 200
)

// LifecycleUseCase creates, updates and inspects signup codes. It is the
// only writer of code records besides the redemption engine, and it never
// touches current_usages except through the clamping rule on capacity
// lowering.
type LifecycleUseCase struct {
	codes repository.SignupCodeRepository
	log   *zerolog.Logger
}

func NewLifecycleUseCase(codes repository.SignupCodeRepository, logger *zerolog.Logger) *LifecycleUseCase {
	l := logger.With().Str("component", "LifecycleUC").Logger()
	return &LifecycleUseCase{codes: codes, log: &l}
}

// Generate mints a fresh code with currentUsages = 0 and isActive = true.
// Collisions with existing codes are retried a bounded number of times
// before giving up with ErrCodeGenerationExhausted.
func (uc *LifecycleUseCase) Generate(ctx context.Context, maxUsages int, createdBy string, expiresAt *time.Time) (*model.SignupCode, error) {
	if maxUsages < 1 || maxUsages > maxUsagesCeiling {
		return nil, domain.ErrInvalidArgument
	}
	if createdBy == "" {
		return nil, domain.ErrInvalidArgument
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, domain.ErrInvalidArgument
	}

	for attempt := 0; attempt < generateAttempts; attempt++ {
		value, err := generateSignupCode()
		if err != nil {
			return nil, err
		}
		record, err := model.NewSignupCode(ulid.Make().String(), value, maxUsages, createdBy, expiresAt)
		if err != nil {
			return nil, err
		}
		err = uc.codes.Create(ctx, repository.NoTX, record)
		if err == nil {
			metrics.IncCodesGenerated()
			uc.log.Info().Str("created_by", createdBy).Int("max_usages", maxUsages).Msg("signup code generated")
			return record, nil
		}
		if errors.Is(err, domain.ErrDuplicateCode) {
			uc.log.Debug().Int("attempt", attempt+1).Msg("code collision, retrying")
			continue
		}
		return nil, err
	}
	return nil, domain.ErrCodeGenerationExhausted
}

// AdminUpdate applies a partial patch. Raising maxUsages on an
// auto-deactivated code does NOT re-enable it: reactivation only happens
// when the patch sets IsActive explicitly.
func (uc *LifecycleUseCase) AdminUpdate(ctx context.Context, raw string, patch model.AdminPatch) (*model.SignupCode, error) {
	code := model.NormalizeCode(raw)
	if patch.MaxUsages != nil && (*patch.MaxUsages < 1 || *patch.MaxUsages > maxUsagesCeiling) {
		return nil, domain.ErrInvalidArgument
	}

	updated, err := uc.codes.UpdateAdmin(ctx, repository.NoTX, code, patch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	if patch.IsActive != nil && !*patch.IsActive {
		metrics.IncCodesDeactivated("admin", 1)
	}
	uc.log.Info().Str("code_id", updated.ID).Msg("signup code updated")
	return updated, nil
}

// GetStatus is the trusted administrative read: it shows true state,
// including inactive and expired codes, with no eligibility filtering.
func (uc *LifecycleUseCase) GetStatus(ctx context.Context, raw string) (*model.SignupCode, error) {
	code := model.NormalizeCode(raw)
	record, err := uc.codes.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	return record, nil
}

// List returns codes newest-first for the admin dashboard.
func (uc *LifecycleUseCase) List(ctx context.Context, offset, limit int) ([]*model.SignupCode, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return uc.codes.List(ctx, repository.NoTX, offset, limit)
}

// DeactivateExpired soft-retires every active code whose expiry has
// passed. The sweeper calls this periodically; redemption correctness
// never depends on it because eligibility re-checks expiry at write time.
func (uc *LifecycleUseCase) DeactivateExpired(ctx context.Context) (int, error) {
	n, err := uc.codes.DeactivateExpired(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncCodesDeactivated("expired", n)
	}
	return n, nil
}
