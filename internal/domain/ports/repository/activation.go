package repository

import (
	"context"
	"time"

	"plugin-license-server/internal/domain/model"
)

// ActivationRepository persists per-domain activations. Domains are expected
// to be normalized before they reach this interface.
type ActivationRepository interface {
	// FindByLicenseAndDomain returns the activation row for the pair whether
	// or not it is currently deactivated.
	FindByLicenseAndDomain(ctx context.Context, tx Tx, licenseID, domain string) (*model.LicenseActivation, error)

	CountActive(ctx context.Context, tx Tx, licenseID string) (int, error)
	CountAllActive(ctx context.Context, tx Tx) (int, error)
	ListActive(ctx context.Context, tx Tx, licenseID string) ([]*model.LicenseActivation, error)

	// InsertIfUnderLimit atomically checks the license's domain capacity and
	// inserts the activation, stamping the license's last_validated_at in the
	// same transaction. The implementation must serialize concurrent calls for
	// the same license (row lock on the license row) so the active-activation
	// count can never exceed the limit. Returns ErrDomainLimitReached when the
	// license is full.
	InsertIfUnderLimit(ctx context.Context, a *model.LicenseActivation) error

	Reactivate(ctx context.Context, tx Tx, id string, at time.Time) error
	Deactivate(ctx context.Context, tx Tx, id string, at time.Time) error
	DeactivateAll(ctx context.Context, tx Tx, licenseID string, at time.Time) (int, error)
	TouchChecked(ctx context.Context, tx Tx, id string, at time.Time) error
}
