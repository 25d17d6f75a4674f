package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/domain/ports/repository"
	"signup-code-service/internal/infra/logging"
	"signup-code-service/internal/infra/metrics"
)

// RedemptionUseCase consumes signup-code capacity. It holds no mutable
// state of its own; all exclusivity is delegated to the store's
// conditional-update primitive.
type RedemptionUseCase struct {
	codes repository.SignupCodeRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	dev   bool
}

func NewRedemptionUseCase(codes repository.SignupCodeRepository, tm repository.TransactionManager, logger *zerolog.Logger, dev bool) *RedemptionUseCase {
	l := logger.With().Str("component", "RedemptionUC").Logger()
	return &RedemptionUseCase{codes: codes, tm: tm, log: &l, dev: dev}
}

// Redeem consumes one unit of the code's capacity.
//
// The fast rejection in step 2 is a UX optimization; the only
// correctness-bearing operation is the conditional increment, which
// re-checks eligibility atomically at write time. Callers are never told
// why a code was not redeemable: missing, inactive, expired and exhausted
// all fold into ErrCodeNotRedeemable so the endpoint cannot be used to
// probe code existence or remaining capacity.
func (uc *RedemptionUseCase) Redeem(ctx context.Context, raw string) (*model.SignupCode, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRedemptionLatency(float64(time.Since(start).Milliseconds()))
	}()

	code := model.NormalizeCode(raw)
	if err := model.ValidateCodeFormat(code); err != nil {
		metrics.IncRedemption("invalid_format")
		return nil, domain.ErrInvalidCodeFormat
	}

	record, err := uc.codes.FindEligible(ctx, repository.NoTX, code)
	if err != nil {
		return nil, uc.fail(ctx, code, err)
	}

	var updated *model.SignupCode
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var txErr error
		updated, txErr = uc.codes.ConditionalIncrement(ctx, tx, code, record.MaxUsages)
		if txErr != nil {
			return txErr
		}
		return uc.codes.RecordRedemption(ctx, tx, &model.Redemption{
			ID:          ulid.Make().String(),
			Code:        updated.Code,
			UsagesAfter: updated.CurrentUsages,
			RedeemedAt:  time.Now(),
		})
	})
	if err != nil {
		return nil, uc.fail(ctx, code, err)
	}

	if updated.CurrentUsages >= updated.MaxUsages {
		// Best-effort cleanup: a failed deactivation leaves the code
		// unusable anyway, since the capacity predicate rejects every
		// further increment regardless of is_active.
		if err := uc.codes.Deactivate(ctx, repository.NoTX, code); err != nil {
			uc.log.Error().Err(err).
				Str("code", logging.Redact(code, uc.dev)).
				Msg("auto-deactivation failed after final redemption")
		} else {
			metrics.IncCodesDeactivated("exhausted", 1)
		}
		updated.IsActive = false
	}

	metrics.IncRedemption("success")
	uc.log.Debug().
		Str("code", logging.Redact(code, uc.dev)).
		Int("usages", updated.CurrentUsages).
		Int("max", updated.MaxUsages).
		Msg("code redeemed")
	return updated, nil
}

// fail translates store-layer failures into the redemption taxonomy.
// A predicate miss is ErrCodeNotRedeemable. Anything else (cancellation,
// timeout, pool trouble) is ErrRedemptionUnavailable: the outcome of a
// timed-out write is unknown, so we fail closed and never assume success.
func (uc *RedemptionUseCase) fail(ctx context.Context, code string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncRedemption("not_redeemable")
		return domain.ErrCodeNotRedeemable
	}
	metrics.IncRedemption("unavailable")
	logging.With(ctx, uc.log).Warn().Err(err).
		Str("code", logging.Redact(code, uc.dev)).
		Msg("redemption store failure")
	return domain.ErrRedemptionUnavailable
}
