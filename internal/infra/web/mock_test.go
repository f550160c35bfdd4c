//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

// --- Mock Repositories (Ports) ---

type mockLicenseRepo struct {
	repository.LicenseRepository // Embed interface for forward compatibility
	mu                           sync.Mutex
	licenses                     map[string]*model.License
}

func newMockLicenseRepo() *mockLicenseRepo {
	return &mockLicenseRepo{licenses: make(map[string]*model.License)}
}

func (m *mockLicenseRepo) add(l *model.License) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.licenses[l.ID] = &cp
}

func (m *mockLicenseRepo) get(id string) *model.License {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.licenses[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

func (m *mockLicenseRepo) Save(ctx context.Context, tx repository.Tx, l *model.License) error {
	m.add(l)
	return nil
}

func (m *mockLicenseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.License, error) {
	if l := m.get(id); l != nil {
		return l, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockLicenseRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.SubscriptionID != nil && *l.SubscriptionID == subscriptionID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLicenseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.LicenseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	return nil
}

func (m *mockLicenseRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, packageID string, domainLimit *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.PackageID = packageID
	l.DomainLimit = domainLimit
	return nil
}

func (m *mockLicenseRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.License, 0, len(m.licenses))
	for _, l := range m.licenses {
		cp := *l
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockLicenseRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.LicenseStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.LicenseStatus]int)
	for _, l := range m.licenses {
		counts[l.Status]++
	}
	return counts, nil
}

type mockActivationRepo struct {
	repository.ActivationRepository
	mu     sync.Mutex
	active map[string]int // license id -> active domain count
}

func newMockActivationRepo() *mockActivationRepo {
	return &mockActivationRepo{active: make(map[string]int)}
}

func (m *mockActivationRepo) CountActive(ctx context.Context, tx repository.Tx, licenseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[licenseID], nil
}

func (m *mockActivationRepo) CountAllActive(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.active {
		total += n
	}
	return total, nil
}

func (m *mockActivationRepo) DeactivateAll(ctx context.Context, tx repository.Tx, licenseID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.active[licenseID]
	m.active[licenseID] = 0
	return n, nil
}

type mockSubscriptionRepo struct {
	repository.SubscriptionRepository
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *mockSubscriptionRepo) add(s *model.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSubscriptionRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, typ, priceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Type = typ
	s.PriceID = priceID
	return nil
}

type mockPackageRepo struct {
	repository.PackageRepository
	mu       sync.Mutex
	packages map[string]*model.Package
}

func newMockPackageRepo() *mockPackageRepo {
	return &mockPackageRepo{packages: make(map[string]*model.Package)}
}

func (m *mockPackageRepo) add(p *model.Package) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.packages[p.ID] = &cp
}

func (m *mockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.packages[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// --- Mock Adapters / Infra ---

type mockBillingGateway struct {
	mu    sync.Mutex
	swaps []string // providerSubID:priceID
	err   error
}

func (m *mockBillingGateway) SwapPrice(ctx context.Context, providerSubscriptionID, priceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.swaps = append(m.swaps, providerSubscriptionID+":"+priceID)
	return nil
}

// mockTxManager runs the function directly; mocks ignore the tx handle.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
