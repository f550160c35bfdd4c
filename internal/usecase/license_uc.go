// File: internal/usecase/license_uc.go
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

// LicenseProjection is the public shape of a license returned by the
// validation API. It carries exactly what a plugin's license-check code needs.
type LicenseProjection struct {
	LicenseKey  string              `json:"license_key"`
	Status      model.LicenseStatus `json:"status"`
	ExpiresAt   *time.Time          `json:"expires_at"`
	DomainLimit *int                `json:"domain_limit"`
	DomainsUsed int                 `json:"domains_used"`
	ProductSlug string              `json:"product_slug"`
	PackageID   string              `json:"package_id"`
}

// ActivationResult reports the outcome of an activate call. Created
// distinguishes a fresh activation (201) from the idempotent and reactivation
// paths (200).
type ActivationResult struct {
	Created bool
	Message string
	License LicenseProjection
}

// CheckResult is the heartbeat answer. It never errors on an inactive
// license; it only reports.
type CheckResult struct {
	Activated    bool
	LicenseValid bool
	License      *LicenseProjection
}

// LicenseUseCase implements the four public license operations plus the admin
// and sweep operations on the license aggregate.
type LicenseUseCase struct {
	licenses    repository.LicenseRepository
	activations repository.ActivationRepository
	log         *zerolog.Logger
}

func NewLicenseUseCase(licenses repository.LicenseRepository, activations repository.ActivationRepository, logger *zerolog.Logger) *LicenseUseCase {
	l := logger.With().Str("component", "LicenseUseCase").Logger()
	return &LicenseUseCase{licenses: licenses, activations: activations, log: &l}
}

// lookup resolves (license_key, product_slug) or fails with ErrLicenseInvalid.
// The pair is the authorization boundary: a bare key presented with the wrong
// product slug must look identical to a key that does not exist.
func (uc *LicenseUseCase) lookup(ctx context.Context, licenseKey, productSlug string) (*model.License, error) {
	if licenseKey == "" || productSlug == "" {
		return nil, domain.ErrLicenseInvalid
	}
	lic, err := uc.licenses.FindByKeyAndProduct(ctx, repository.NoTX, licenseKey, productSlug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrLicenseInvalid
		}
		return nil, err
	}
	return lic, nil
}

func (uc *LicenseUseCase) projection(ctx context.Context, lic *model.License, productSlug string) (LicenseProjection, error) {
	used, err := uc.activations.CountActive(ctx, repository.NoTX, lic.ID)
	if err != nil {
		return LicenseProjection{}, err
	}
	return LicenseProjection{
		LicenseKey:  lic.LicenseKey,
		Status:      lic.Status,
		ExpiresAt:   lic.ExpiresAt,
		DomainLimit: lic.DomainLimit,
		DomainsUsed: used,
		ProductSlug: productSlug,
		PackageID:   lic.PackageID,
	}, nil
}

// Validate looks the license up, stamps last_validated_at, and returns the
// public projection. No domain is involved.
func (uc *LicenseUseCase) Validate(ctx context.Context, licenseKey, productSlug string) (*LicenseProjection, error) {
	lic, err := uc.lookup(ctx, licenseKey, productSlug)
	if err != nil {
		return nil, err
	}
	if err := uc.licenses.TouchValidated(ctx, repository.NoTX, lic.ID, time.Now()); err != nil {
		return nil, err
	}
	proj, err := uc.projection(ctx, lic, productSlug)
	if err != nil {
		return nil, err
	}
	return &proj, nil
}

// Activate binds a domain to the license. Repeated calls for the same domain
// are idempotent; a previously deactivated domain is reactivated in place.
// Only a brand-new domain consumes a capacity slot, and that path runs as one
// atomic check-and-insert inside the repository.
func (uc *LicenseUseCase) Activate(ctx context.Context, licenseKey, productSlug, rawDomain, ip, userAgent string) (*ActivationResult, error) {
	lic, err := uc.lookup(ctx, licenseKey, productSlug)
	if err != nil {
		return nil, err
	}
	// Gate on usability, not stored status: a date-expired license must be
	// refused here even when the expiry sweep has not caught up yet.
	if !lic.IsUsable(time.Now()) {
		return nil, domain.ErrLicenseInactive
	}

	dom := model.NormalizeDomain(rawDomain)
	if dom == "" {
		return nil, fmt.Errorf("domain is required: %w", domain.ErrInvalidArgument)
	}

	now := time.Now()
	existing, err := uc.activations.FindByLicenseAndDomain(ctx, repository.NoTX, lic.ID, dom)
	switch {
	case err == nil && existing.IsActive():
		// Repeat call from an already-activated site.
		if err := uc.activations.TouchChecked(ctx, repository.NoTX, existing.ID, now); err != nil {
			return nil, err
		}
		return uc.activationResult(ctx, lic, productSlug, false, "domain already activated")

	case err == nil:
		// Known domain, previously deactivated: reactivate the same row.
		// Capacity is not re-checked here; the domain held a slot before.
		if err := uc.activations.Reactivate(ctx, repository.NoTX, existing.ID, now); err != nil {
			return nil, err
		}
		if err := uc.licenses.TouchValidated(ctx, repository.NoTX, lic.ID, now); err != nil {
			return nil, err
		}
		return uc.activationResult(ctx, lic, productSlug, false, "domain reactivated")

	case errors.Is(err, domain.ErrNotFound):
		act, err := model.NewLicenseActivation(uuid.NewString(), lic.ID, dom, ip, userAgent)
		if err != nil {
			return nil, err
		}
		if err := uc.activations.InsertIfUnderLimit(ctx, act); err != nil {
			if errors.Is(err, domain.ErrDomainLimitReached) && lic.DomainLimit != nil {
				return nil, fmt.Errorf("domain limit of %d reached: %w", *lic.DomainLimit, domain.ErrDomainLimitReached)
			}
			if errors.Is(err, domain.ErrAlreadyExists) {
				// A concurrent call for the same domain won the insert.
				// This request still succeeds, it just didn't create the row.
				return uc.activationResult(ctx, lic, productSlug, false, "domain already activated")
			}
			return nil, err
		}
		uc.log.Info().Str("license_id", lic.ID).Str("domain", dom).Msg("domain activated")
		return uc.activationResult(ctx, lic, productSlug, true, "domain activated")

	default:
		return nil, err
	}
}

func (uc *LicenseUseCase) activationResult(ctx context.Context, lic *model.License, productSlug string, created bool, msg string) (*ActivationResult, error) {
	proj, err := uc.projection(ctx, lic, productSlug)
	if err != nil {
		return nil, err
	}
	return &ActivationResult{Created: created, Message: msg, License: proj}, nil
}

// Deactivate releases a domain's slot. The activation row stays around with
// its deactivation timestamp as audit data.
func (uc *LicenseUseCase) Deactivate(ctx context.Context, licenseKey, productSlug, rawDomain string) error {
	lic, err := uc.lookup(ctx, licenseKey, productSlug)
	if err != nil {
		return err
	}

	dom := model.NormalizeDomain(rawDomain)
	act, err := uc.activations.FindByLicenseAndDomain(ctx, repository.NoTX, lic.ID, dom)
	if err != nil || !act.IsActive() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.ErrActivationNotFound
	}

	if err := uc.activations.Deactivate(ctx, repository.NoTX, act.ID, time.Now()); err != nil {
		return err
	}
	uc.log.Info().Str("license_id", lic.ID).Str("domain", dom).Msg("domain deactivated")
	return nil
}

// Check is the polling query plugins run on a schedule. A missing activation
// is an answer, not an error.
func (uc *LicenseUseCase) Check(ctx context.Context, licenseKey, productSlug, rawDomain string) (*CheckResult, error) {
	lic, err := uc.lookup(ctx, licenseKey, productSlug)
	if err != nil {
		return nil, err
	}

	dom := model.NormalizeDomain(rawDomain)
	act, err := uc.activations.FindByLicenseAndDomain(ctx, repository.NoTX, lic.ID, dom)
	if err != nil || !act.IsActive() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return &CheckResult{Activated: false, LicenseValid: lic.IsUsable(time.Now())}, nil
	}

	now := time.Now()
	if err := uc.activations.TouchChecked(ctx, repository.NoTX, act.ID, now); err != nil {
		return nil, err
	}
	if err := uc.licenses.TouchValidated(ctx, repository.NoTX, lic.ID, now); err != nil {
		return nil, err
	}
	proj, err := uc.projection(ctx, lic, productSlug)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Activated: true, LicenseValid: lic.IsUsable(now), License: &proj}, nil
}

// FinishExpired flips date-expired active licenses to expired status. Run
// periodically by the expiry worker.
func (uc *LicenseUseCase) FinishExpired(ctx context.Context) (int, error) {
	return uc.licenses.MarkExpired(ctx, repository.NoTX, time.Now())
}

// --- Admin operations ---

func (uc *LicenseUseCase) Get(ctx context.Context, id string) (*model.License, error) {
	return uc.licenses.FindByID(ctx, repository.NoTX, id)
}

func (uc *LicenseUseCase) List(ctx context.Context, offset, limit int) ([]*model.License, error) {
	return uc.licenses.List(ctx, repository.NoTX, offset, limit)
}

func (uc *LicenseUseCase) CountByStatus(ctx context.Context) (map[model.LicenseStatus]int, error) {
	return uc.licenses.CountByStatus(ctx, repository.NoTX)
}

// ActiveActivations counts currently bound domains across all licenses.
func (uc *LicenseUseCase) ActiveActivations(ctx context.Context) (int, error) {
	return uc.activations.CountAllActive(ctx, repository.NoTX)
}

func (uc *LicenseUseCase) Suspend(ctx context.Context, id string) error {
	return uc.licenses.UpdateStatus(ctx, repository.NoTX, id, model.LicenseStatusSuspended)
}

func (uc *LicenseUseCase) Resume(ctx context.Context, id string) error {
	return uc.licenses.UpdateStatus(ctx, repository.NoTX, id, model.LicenseStatusActive)
}

// DeactivateAllDomains releases every active domain of a license at once.
func (uc *LicenseUseCase) DeactivateAllDomains(ctx context.Context, id string) (int, error) {
	n, err := uc.activations.DeactivateAll(ctx, repository.NoTX, id, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.Info().Str("license_id", id).Int("count", n).Msg("all domains deactivated")
	}
	return n, nil
}

// CreateManual issues a license outside of billing, e.g. for a support case.
// Such licenses have no subscription id.
func (uc *LicenseUseCase) CreateManual(ctx context.Context, userID, productID, packageID string, domainLimit *int, expiresAt *time.Time) (*model.License, error) {
	lic, err := model.NewLicense(uuid.NewString(), userID, productID, packageID, nil, domainLimit, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := uc.licenses.Save(ctx, repository.NoTX, lic); err != nil {
		return nil, err
	}
	uc.log.Info().Str("license_id", lic.ID).Str("user_id", userID).Msg("license created manually")
	return lic, nil
}
