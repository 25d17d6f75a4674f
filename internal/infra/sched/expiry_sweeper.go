package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signup-code-service/internal/usecase"
)

// ExpirySweeper periodically soft-retires expired signup codes via the
// lifecycle use case. Redemption correctness does not depend on it: the
// store re-checks expiry on every conditional increment. The sweeper just
// keeps dashboard state tidy.
type ExpirySweeper struct {
	interval time.Duration
	lifeUC   *usecase.LifecycleUseCase
	log      *zerolog.Logger
}

func NewExpirySweeper(interval time.Duration, lifeUC *usecase.LifecycleUseCase, logger *zerolog.Logger) *ExpirySweeper {
	l := logger.With().Str("component", "ExpirySweeper").Logger()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirySweeper{interval: interval, lifeUC: lifeUC, log: &l}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.lifeUC.DeactivateExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
				continue
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired codes deactivated")
			}
		}
	}
}
