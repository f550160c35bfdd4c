package adapter

import "context"

// BillingGateway is the outbound interface to the billing provider. The
// reconciler swaps the subscription's price item when a user changes plan;
// everything else billing-side (checkout, invoices, portal) belongs to the
// storefront and is out of scope here.
type BillingGateway interface {
	SwapPrice(ctx context.Context, providerSubscriptionID, priceID string) error
}
