package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"plugin-license-server/internal/infra/metrics"
	"plugin-license-server/internal/usecase"
)

// ExpiryWorker periodically sweeps date-expired licenses into the expired
// status. Validation never flips statuses itself, so without this sweep an
// overdue license would keep reporting active until someone touched it.
type ExpiryWorker struct {
	interval time.Duration
	uc       *usecase.LicenseUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, uc *usecase.LicenseUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, uc: uc, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	// Run once on startup, then on every tick.
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.uc.FinishExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		metrics.IncLicensesExpired(n)
		w.log.Info().Int("count", n).Msg("licenses expired")
	}

	counts, err := w.uc.CountByStatus(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("could not refresh license status gauge")
		return
	}
	metrics.SetLicensesTotal(counts)
}
