//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

// --- Mock Repositories (Ports) ---

type mockLicenseRepo struct {
	repository.LicenseRepository // Embed interface for forward compatibility
	mu                           sync.Mutex
	licenses                     map[string]*model.License
	products                     map[string]*model.Product // by product id
}

func newMockLicenseRepo() *mockLicenseRepo {
	return &mockLicenseRepo{
		licenses: make(map[string]*model.License),
		products: make(map[string]*model.Product),
	}
}

func (m *mockLicenseRepo) add(l *model.License, p *model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, pc := *l, *p
	m.licenses[l.ID] = &lc
	m.products[p.ID] = &pc
}

func (m *mockLicenseRepo) FindByKeyAndProduct(ctx context.Context, tx repository.Tx, licenseKey, productSlug string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.LicenseKey != licenseKey {
			continue
		}
		if p, ok := m.products[l.ProductID]; ok && p.Slug == productSlug && p.Active {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLicenseRepo) TouchValidated(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	stamp := at
	l.LastValidatedAt = &stamp
	return nil
}

type mockActivationRepo struct {
	repository.ActivationRepository
	mu       sync.Mutex
	rows     map[string]*model.LicenseActivation
	licenses *mockLicenseRepo
}

func newMockActivationRepo(licenses *mockLicenseRepo) *mockActivationRepo {
	return &mockActivationRepo{
		rows:     make(map[string]*model.LicenseActivation),
		licenses: licenses,
	}
}

func (m *mockActivationRepo) FindByLicenseAndDomain(ctx context.Context, tx repository.Tx, licenseID, dom string) (*model.LicenseActivation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.LicenseID == licenseID && a.Domain == dom {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockActivationRepo) CountActive(ctx context.Context, tx repository.Tx, licenseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(licenseID), nil
}

func (m *mockActivationRepo) countActiveLocked(licenseID string) int {
	n := 0
	for _, a := range m.rows {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			n++
		}
	}
	return n
}

func (m *mockActivationRepo) InsertIfUnderLimit(ctx context.Context, a *model.LicenseActivation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.licenses.mu.Lock()
	lic, ok := m.licenses.licenses[a.LicenseID]
	m.licenses.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	if !lic.CanActivateMore(m.countActiveLocked(a.LicenseID)) {
		return domain.ErrDomainLimitReached
	}
	cp := *a
	m.rows[a.ID] = &cp
	return m.licenses.TouchValidated(ctx, repository.NoTX, a.LicenseID, time.Now())
}

func (m *mockActivationRepo) Reactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.DeactivatedAt = nil
	a.ActivatedAt = at
	return nil
}

func (m *mockActivationRepo) Deactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.DeactivatedAt == nil {
		stamp := at
		a.DeactivatedAt = &stamp
	}
	return nil
}

func (m *mockActivationRepo) TouchChecked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	stamp := at
	a.LastCheckedAt = &stamp
	return nil
}
