package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	stripesub "github.com/stripe/stripe-go/v78/subscription"

	"plugin-license-server/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*StripeGateway)(nil)

// StripeGateway swaps the price on a live Stripe subscription. The swap is
// prorated immediately; the caller is responsible for keeping local records in
// step.
type StripeGateway struct {
	log *zerolog.Logger
}

func NewStripeGateway(apiKey string, logger *zerolog.Logger) *StripeGateway {
	stripe.Key = apiKey
	l := logger.With().Str("component", "StripeGateway").Logger()
	return &StripeGateway{log: &l}
}

func (g *StripeGateway) SwapPrice(ctx context.Context, providerSubscriptionID, priceID string) error {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := stripesub.Get(providerSubscriptionID, getParams)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", providerSubscriptionID, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no price item", providerSubscriptionID)
	}

	item := sub.Items.Data[0]
	if item.Price != nil && item.Price.ID == priceID {
		return nil
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(item.ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	if _, err := stripesub.Update(providerSubscriptionID, params); err != nil {
		return fmt.Errorf("update subscription %s: %w", providerSubscriptionID, err)
	}
	g.log.Info().
		Str("provider_subscription_id", providerSubscriptionID).
		Str("price_id", priceID).
		Msg("subscription price swapped")
	return nil
}
