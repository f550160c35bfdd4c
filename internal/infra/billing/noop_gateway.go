package billing

import (
	"context"

	"github.com/rs/zerolog"

	"plugin-license-server/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*NoopGateway)(nil)

// NoopGateway is used in dev mode so plan changes work without Stripe
// credentials. It only logs what would have happened.
type NoopGateway struct {
	log *zerolog.Logger
}

func NewNoopGateway(logger *zerolog.Logger) *NoopGateway {
	l := logger.With().Str("component", "NoopGateway").Logger()
	return &NoopGateway{log: &l}
}

func (g *NoopGateway) SwapPrice(ctx context.Context, providerSubscriptionID, priceID string) error {
	g.log.Info().
		Str("provider_subscription_id", providerSubscriptionID).
		Str("price_id", priceID).
		Msg("dev mode: price swap skipped")
	return nil
}
