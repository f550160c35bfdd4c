package model

import (
	"time"

	"plugin-license-server/internal/domain"
)

// LicenseActivation binds a license to one normalized domain. Deactivation is
// soft: DeactivatedAt doubles as the "currently active" marker (nil = active)
// and as audit data. Reactivating a domain reuses the existing row.
type LicenseActivation struct {
	ID            string
	LicenseID     string
	Domain        string
	IPAddress     string
	UserAgent     string
	ActivatedAt   time.Time
	LastCheckedAt *time.Time
	DeactivatedAt *time.Time
}

// NewLicenseActivation constructs an activation for an already-normalized domain.
func NewLicenseActivation(id, licenseID, domain_, ip, userAgent string) (*LicenseActivation, error) {
	if id == "" || licenseID == "" || domain_ == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &LicenseActivation{
		ID:          id,
		LicenseID:   licenseID,
		Domain:      domain_,
		IPAddress:   ip,
		UserAgent:   userAgent,
		ActivatedAt: time.Now(),
	}, nil
}

// IsActive reports whether the domain is currently bound (not deactivated).
func (a *LicenseActivation) IsActive() bool {
	return a.DeactivatedAt == nil
}

// Deactivate soft-deletes the activation. Calling it twice is a no-op.
func (a *LicenseActivation) Deactivate() {
	if a.DeactivatedAt != nil {
		return
	}
	now := time.Now()
	a.DeactivatedAt = &now
}

// Reactivate clears the deactivation marker and refreshes ActivatedAt.
func (a *LicenseActivation) Reactivate() {
	a.DeactivatedAt = nil
	a.ActivatedAt = time.Now()
}

// UpdateLastChecked stamps the heartbeat timestamp. Telemetry only.
func (a *LicenseActivation) UpdateLastChecked() {
	now := time.Now()
	a.LastCheckedAt = &now
}
