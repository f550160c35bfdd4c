package model

import (
	"time"

	"plugin-license-server/internal/domain"
)

// Subscription is the local record of a billing-provider subscription. It is
// written when checkout completes and read by provisioning and plan changes.
// Type carries the product family label (usually the product slug).
type Subscription struct {
	ID         string
	UserID     string
	ProviderID string // billing provider subscription id (e.g. sub_...)
	Type       string
	PriceID    string
	Status     string
	CreatedAt  time.Time
}

// NewSubscription validates and constructs a local subscription record.
func NewSubscription(id, userID, providerID, typ, priceID string) (*Subscription, error) {
	if id == "" || userID == "" || providerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:         id,
		UserID:     userID,
		ProviderID: providerID,
		Type:       typ,
		PriceID:    priceID,
		Status:     "active",
		CreatedAt:  time.Now(),
	}, nil
}
