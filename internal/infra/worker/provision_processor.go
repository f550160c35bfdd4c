package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/infra/metrics"
	"plugin-license-server/internal/infra/redis"
	"plugin-license-server/internal/usecase"
)

// Provisioner is the slice of the provisioning use case the processor needs.
type Provisioner interface {
	HandleSubscriptionCreated(ctx context.Context, ev usecase.SubscriptionCreatedEvent) error
}

// ProvisionProcessor owns the retry policy for webhook-driven license
// provisioning. A redis lock keyed by the provider subscription id
// deduplicates concurrent deliveries of the same event; the lock TTL outlives
// the full backoff schedule so a crashed holder cannot strand an event for
// longer than the TTL.
type ProvisionProcessor struct {
	uc     Provisioner
	pool   *Pool
	locker redis.Locker
	cfg    config.ProvisioningConfig
	log    *zerolog.Logger
}

func NewProvisionProcessor(
	uc Provisioner,
	pool *Pool,
	locker redis.Locker,
	cfg config.ProvisioningConfig,
	logger *zerolog.Logger,
) *ProvisionProcessor {
	l := logger.With().Str("component", "ProvisionProcessor").Logger()
	return &ProvisionProcessor{uc: uc, pool: pool, locker: locker, cfg: cfg, log: &l}
}

// Enqueue hands the event to the pool and returns immediately so the webhook
// endpoint can acknowledge within the provider's delivery timeout.
func (p *ProvisionProcessor) Enqueue(ev usecase.SubscriptionCreatedEvent) error {
	err := p.pool.Submit(func(ctx context.Context) error {
		return p.process(ctx, ev)
	})
	if err != nil {
		metrics.IncProvisioning("dropped")
		p.log.Error().
			Str("provider_subscription_id", ev.ProviderSubscriptionID).
			Err(err).
			Msg("provisioning queue full; event dropped, provider will redeliver")
	}
	return err
}

func (p *ProvisionProcessor) process(ctx context.Context, ev usecase.SubscriptionCreatedEvent) error {
	lockKey := "provision:" + ev.ProviderSubscriptionID
	token, err := p.locker.TryLock(ctx, lockKey, p.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			metrics.IncProvisioning("lock_held")
			p.log.Debug().
				Str("provider_subscription_id", ev.ProviderSubscriptionID).
				Msg("provisioning already in flight elsewhere; skipping")
			return nil
		}
		return err
	}
	defer func() {
		if err := p.locker.Unlock(context.Background(), lockKey, token); err != nil {
			p.log.Warn().Str("key", lockKey).Err(err).Msg("failed to release provisioning lock")
		}
	}()

	for attempt := 1; ; attempt++ {
		err := p.uc.HandleSubscriptionCreated(ctx, ev)
		if err == nil {
			metrics.IncProvisioning("ok")
			return nil
		}
		if !errors.Is(err, domain.ErrSubscriptionNotReady) {
			metrics.IncProvisioning("failed")
			return err
		}
		if attempt >= p.cfg.MaxAttempts {
			metrics.IncProvisioning("exhausted")
			p.log.Error().
				Str("provider_subscription_id", ev.ProviderSubscriptionID).
				Int("attempts", attempt).
				Msg("subscription never became ready; giving up")
			return err
		}

		metrics.IncProvisioningRetry()
		delay := p.backoff(attempt)
		p.log.Warn().
			Str("provider_subscription_id", ev.ProviderSubscriptionID).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("subscription not ready; will retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff returns the delay after the given 1-based attempt. Attempts past the
// end of the schedule reuse the last step.
func (p *ProvisionProcessor) backoff(attempt int) time.Duration {
	steps := p.cfg.Backoff
	if len(steps) == 0 {
		return 30 * time.Second
	}
	if attempt > len(steps) {
		return steps[len(steps)-1]
	}
	return steps[attempt-1]
}
