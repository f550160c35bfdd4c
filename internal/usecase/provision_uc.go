// File: internal/usecase/provision_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

// SubscriptionCreatedEvent is the provisioning input distilled from the
// billing provider's "subscription created" webhook. Delivery is
// at-least-once and unordered; metadata keys are best-effort hints set at
// checkout time.
type SubscriptionCreatedEvent struct {
	ProviderSubscriptionID string
	PriceID                string
	CurrentPeriodEnd       *time.Time
	Metadata               map[string]string
}

// ProvisionUseCase creates a license in reaction to a confirmed subscription.
// The only retryable failure is a local subscription row that has not been
// persisted yet; all other missing data is an operator problem, logged and
// skipped so the queue does not spin on it.
type ProvisionUseCase struct {
	subs     repository.SubscriptionRepository
	packages repository.PackageRepository
	users    repository.UserRepository
	licenses repository.LicenseRepository
	log      *zerolog.Logger
}

func NewProvisionUseCase(
	subs repository.SubscriptionRepository,
	packages repository.PackageRepository,
	users repository.UserRepository,
	licenses repository.LicenseRepository,
	logger *zerolog.Logger,
) *ProvisionUseCase {
	l := logger.With().Str("component", "ProvisionUseCase").Logger()
	return &ProvisionUseCase{subs: subs, packages: packages, users: users, licenses: licenses, log: &l}
}

// HandleSubscriptionCreated provisions at most one license for the event's
// subscription. Returns an error wrapping ErrSubscriptionNotReady when the
// caller should requeue with backoff; returns nil (after logging) on
// non-transient data problems.
func (uc *ProvisionUseCase) HandleSubscriptionCreated(ctx context.Context, ev SubscriptionCreatedEvent) error {
	if ev.ProviderSubscriptionID == "" {
		uc.log.Warn().Msg("subscription event without provider id; skipping")
		return nil
	}

	sub, err := uc.subs.FindByProviderID(ctx, repository.NoTX, ev.ProviderSubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Checkout persists the subscription row in a separate process;
			// the webhook can outrun it. Requeue.
			return fmt.Errorf("subscription %s: %w", ev.ProviderSubscriptionID, domain.ErrSubscriptionNotReady)
		}
		return err
	}

	pkg := uc.resolvePackage(ctx, ev, sub)
	if pkg == nil {
		uc.log.Error().
			Str("provider_subscription_id", ev.ProviderSubscriptionID).
			Str("price_id", ev.PriceID).
			Interface("metadata", ev.Metadata).
			Msg("could not resolve package for subscription; no license created")
		return nil
	}

	user, err := uc.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if err != nil {
		uc.log.Error().
			Str("provider_subscription_id", ev.ProviderSubscriptionID).
			Str("user_id", sub.UserID).
			Err(err).
			Msg("could not resolve user for subscription; no license created")
		return nil
	}

	lic, err := model.NewLicense(uuid.NewString(), user.ID, pkg.ProductID, pkg.ID, &sub.ID, pkg.DomainLimit, ev.CurrentPeriodEnd)
	if err != nil {
		return err
	}

	got, created, err := uc.licenses.CreateIfAbsent(ctx, repository.NoTX, lic)
	if err != nil {
		return err
	}
	if !created {
		uc.log.Debug().
			Str("subscription_id", sub.ID).
			Str("license_id", got.ID).
			Msg("license already provisioned for subscription")
		return nil
	}
	uc.log.Info().
		Str("subscription_id", sub.ID).
		Str("license_id", got.ID).
		Str("package_id", pkg.ID).
		Msg("license provisioned")
	return nil
}

// resolvePackage tries, in order: the billing price id, the package_id hint
// from checkout metadata, and finally the subscription's type label as a
// package slug.
func (uc *ProvisionUseCase) resolvePackage(ctx context.Context, ev SubscriptionCreatedEvent, sub *model.Subscription) *model.Package {
	if ev.PriceID != "" {
		if pkg, err := uc.packages.FindByPriceID(ctx, repository.NoTX, ev.PriceID); err == nil {
			return pkg
		}
	}
	if id := ev.Metadata["package_id"]; id != "" {
		if pkg, err := uc.packages.FindByID(ctx, repository.NoTX, id); err == nil {
			return pkg
		}
	}
	if sub.Type != "" {
		if pkg, err := uc.packages.FindBySlug(ctx, repository.NoTX, sub.Type); err == nil {
			return pkg
		}
	}
	return nil
}
