// File: internal/usecase/planchange_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/adapter"
	"plugin-license-server/internal/domain/ports/repository"
)

// PlanChangeUseCase swaps an existing subscription onto another package,
// propagating the new domain limit onto the license. The license's limit is a
// copy, not a join, so this is the only place downgrades/upgrades reach it.
type PlanChangeUseCase struct {
	subs        repository.SubscriptionRepository
	packages    repository.PackageRepository
	licenses    repository.LicenseRepository
	activations repository.ActivationRepository
	billing     adapter.BillingGateway
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewPlanChangeUseCase(
	subs repository.SubscriptionRepository,
	packages repository.PackageRepository,
	licenses repository.LicenseRepository,
	activations repository.ActivationRepository,
	billing adapter.BillingGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *PlanChangeUseCase {
	l := logger.With().Str("component", "PlanChangeUseCase").Logger()
	return &PlanChangeUseCase{
		subs:        subs,
		packages:    packages,
		licenses:    licenses,
		activations: activations,
		billing:     billing,
		tm:          tm,
		log:         &l,
	}
}

// ChangePlan moves the user's subscription to the target package and billing
// interval. Refuses with ErrCannotDowngrade while more domains are active
// than the new package allows; the user must deactivate domains first. When
// no license exists yet (provisioning webhook still in flight) one is created
// here under the same idempotent-by-subscription contract, so whichever of
// the two paths runs last observes "already exists" instead of duplicating.
func (uc *PlanChangeUseCase) ChangePlan(ctx context.Context, userID, subscriptionID, packageID, interval string) (*model.License, error) {
	sub, err := uc.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, domain.ErrNotFound
	}

	pkg, err := uc.packages.FindByID(ctx, repository.NoTX, packageID)
	if err != nil {
		return nil, err
	}
	price := pkg.PriceFor(interval)
	if price == "" {
		return nil, fmt.Errorf("package %s has no %s price: %w", pkg.ID, interval, domain.ErrInvalidArgument)
	}

	if sub.PriceID == price {
		// Already on this plan.
		lic, err := uc.licenses.FindBySubscriptionID(ctx, repository.NoTX, sub.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return lic, nil
	}

	lic, err := uc.licenses.FindBySubscriptionID(ctx, repository.NoTX, sub.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if lic != nil && pkg.DomainLimit != nil {
		used, err := uc.activations.CountActive(ctx, repository.NoTX, lic.ID)
		if err != nil {
			return nil, err
		}
		if used > *pkg.DomainLimit {
			return nil, fmt.Errorf("%d domains active, new limit is %d: %w", used, *pkg.DomainLimit, domain.ErrCannotDowngrade)
		}
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.billing.SwapPrice(ctx, sub.ProviderID, price); err != nil {
			return err
		}
		if err := uc.subs.UpdatePlan(ctx, tx, sub.ID, pkg.Slug, price); err != nil {
			return err
		}
		if lic != nil {
			return uc.licenses.UpdatePlan(ctx, tx, lic.ID, pkg.ID, pkg.DomainLimit)
		}
		fresh, err := model.NewLicense(uuid.NewString(), sub.UserID, pkg.ProductID, pkg.ID, &sub.ID, pkg.DomainLimit, nil)
		if err != nil {
			return err
		}
		lic, _, err = uc.licenses.CreateIfAbsent(ctx, tx, fresh)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("subscription_id", sub.ID).
		Str("package_id", pkg.ID).
		Str("price_id", price).
		Msg("plan changed")

	if lic != nil {
		return uc.licenses.FindByID(ctx, repository.NoTX, lic.ID)
	}
	return uc.licenses.FindBySubscriptionID(ctx, repository.NoTX, sub.ID)
}
