package repository

import (
	"context"
	"time"

	"plugin-license-server/internal/domain/model"
)

// LicenseRepository persists licenses and answers the lookups the activation
// API and provisioning need. FindByKeyAndProduct is the authorization
// boundary: a key resolves only together with the slug of an active product.
type LicenseRepository interface {
	Save(ctx context.Context, tx Tx, l *model.License) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.License, error)
	FindByKeyAndProduct(ctx context.Context, tx Tx, licenseKey, productSlug string) (*model.License, error)
	FindBySubscriptionID(ctx context.Context, tx Tx, subscriptionID string) (*model.License, error)

	// CreateIfAbsent inserts l unless a license already exists for its
	// subscription id. Returns the created or pre-existing row and whether an
	// insert happened. Safe under duplicate webhook delivery.
	CreateIfAbsent(ctx context.Context, tx Tx, l *model.License) (*model.License, bool, error)

	TouchValidated(ctx context.Context, tx Tx, id string, at time.Time) error
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.LicenseStatus) error
	UpdatePlan(ctx context.Context, tx Tx, id, packageID string, domainLimit *int) error

	// MarkExpired flips date-expired active licenses to expired status and
	// returns how many rows changed. Used by the expiry sweep.
	MarkExpired(ctx context.Context, tx Tx, now time.Time) (int, error)

	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.License, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.LicenseStatus]int, error)
}
