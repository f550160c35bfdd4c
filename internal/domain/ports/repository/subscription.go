package repository

import (
	"context"

	"plugin-license-server/internal/domain/model"
)

// SubscriptionRepository reads the local billing subscription records written
// by the storefront's checkout flow.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByProviderID(ctx context.Context, tx Tx, providerID string) (*model.Subscription, error)
	FindByUserAndType(ctx context.Context, tx Tx, userID, typ string) (*model.Subscription, error)
	UpdatePlan(ctx context.Context, tx Tx, id, typ, priceID string) error
}
