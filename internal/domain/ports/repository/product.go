package repository

import (
	"context"

	"plugin-license-server/internal/domain/model"
)

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Product, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Product, error)
	List(ctx context.Context, tx Tx) ([]*model.Product, error)
}

// PackageRepository resolves pricing tiers. FindByPriceID and FindBySlug back
// the provisioning fallback chain (price id -> metadata -> subscription type).
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	FindByPriceID(ctx context.Context, tx Tx, priceID string) (*model.Package, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Package, error)
}
