package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"plugin-license-server/internal/domain"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusCancelled LicenseStatus = "cancelled"
	LicenseStatusPaused    LicenseStatus = "paused"
)

// License grants a user usage rights to a product/package with a domain
// capacity. DomainLimit is copied from the package at issuance and mutated
// only by plan changes. SubscriptionID is nil for admin-created licenses;
// when set, it is unique (the idempotent-provisioning key).
type License struct {
	ID              string
	LicenseKey      string
	UserID          string
	ProductID       string
	PackageID       string
	SubscriptionID  *string
	DomainLimit     *int
	Status          LicenseStatus
	ExpiresAt       *time.Time
	LastValidatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLicense constructs an active license with a freshly generated key.
func NewLicense(id, userID, productID, packageID string, subscriptionID *string, domainLimit *int, expiresAt *time.Time) (*License, error) {
	if id == "" || userID == "" || productID == "" || packageID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if domainLimit != nil && *domainLimit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &License{
		ID:             id,
		LicenseKey:     NewLicenseKey(),
		UserID:         userID,
		ProductID:      productID,
		PackageID:      packageID,
		SubscriptionID: subscriptionID,
		DomainLimit:    domainLimit,
		Status:         LicenseStatusActive,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewLicenseKey generates an opaque license key. Keys are never reissued.
func NewLicenseKey() string {
	return "PL-" + ulid.Make().String()
}

// IsActive reports whether the license status is active. It deliberately does
// not consult ExpiresAt; date expiry is a separate concern (see IsUsable).
func (l *License) IsActive() bool {
	return l.Status == LicenseStatusActive
}

// IsUsable is the single status-plus-expiry decision point: active status and
// either no expiry or an expiry in the future.
func (l *License) IsUsable(now time.Time) bool {
	if !l.IsActive() {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// CanActivateMore reports whether a license with activeCount currently active
// domains has room for one more. A nil DomainLimit means unlimited. The count
// must be taken under the same transaction as the insert it gates.
func (l *License) CanActivateMore(activeCount int) bool {
	if l.DomainLimit == nil {
		return true
	}
	return activeCount < *l.DomainLimit
}
