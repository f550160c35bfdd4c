//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Transaction manager
// =============================

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// =============================
// License repository
// =============================

type MockLicenseRepo struct {
	mu       sync.Mutex
	store    map[string]*model.License // by ID
	products map[string]*model.Product // by ID, for FindByKeyAndProduct

	SaveFunc           func(ctx context.Context, tx repository.Tx, l *model.License) error
	CreateIfAbsentFunc func(ctx context.Context, tx repository.Tx, l *model.License) (*model.License, bool, error)
}

func NewMockLicenseRepo() *MockLicenseRepo {
	return &MockLicenseRepo{
		store:    make(map[string]*model.License),
		products: make(map[string]*model.Product),
	}
}

func (m *MockLicenseRepo) AddProduct(p *model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
}

func (m *MockLicenseRepo) Save(ctx context.Context, tx repository.Tx, l *model.License) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.store[l.ID] = &cp
	return nil
}

func (m *MockLicenseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockLicenseRepo) FindByKeyAndProduct(ctx context.Context, tx repository.Tx, licenseKey, productSlug string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.store {
		if l.LicenseKey != licenseKey {
			continue
		}
		p, ok := m.products[l.ProductID]
		if ok && p.Slug == productSlug && p.Active {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLicenseRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.store {
		if l.SubscriptionID != nil && *l.SubscriptionID == subscriptionID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLicenseRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, l *model.License) (*model.License, bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, tx, l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.SubscriptionID != nil {
		for _, existing := range m.store {
			if existing.SubscriptionID != nil && *existing.SubscriptionID == *l.SubscriptionID {
				cp := *existing
				return &cp, false, nil
			}
		}
	}
	cp := *l
	m.store[l.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *MockLicenseRepo) TouchValidated(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	stamp := at
	l.LastValidatedAt = &stamp
	return nil
}

func (m *MockLicenseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.LicenseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	return nil
}

func (m *MockLicenseRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, packageID string, domainLimit *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.PackageID = packageID
	l.DomainLimit = domainLimit
	return nil
}

func (m *MockLicenseRepo) MarkExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.store {
		if l.Status == model.LicenseStatusActive && l.ExpiresAt != nil && l.ExpiresAt.Before(now) {
			l.Status = model.LicenseStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *MockLicenseRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.License, 0, len(m.store))
	for _, l := range m.store {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockLicenseRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.LicenseStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.LicenseStatus]int)
	for _, l := range m.store {
		counts[l.Status]++
	}
	return counts, nil
}

var _ repository.LicenseRepository = (*MockLicenseRepo)(nil)

// =============================
// Activation repository
// =============================

// MockActivationRepo keeps activations in memory. InsertIfUnderLimit
// serializes on the repo mutex the way the real implementation serializes on
// the license row lock, so concurrent activations observe a consistent count.
type MockActivationRepo struct {
	mu       sync.Mutex
	store    map[string]*model.LicenseActivation // by ID
	Licenses *MockLicenseRepo

	InsertIfUnderLimitFunc func(ctx context.Context, a *model.LicenseActivation) error
}

func NewMockActivationRepo(licenses *MockLicenseRepo) *MockActivationRepo {
	return &MockActivationRepo{
		store:    make(map[string]*model.LicenseActivation),
		Licenses: licenses,
	}
}

func (m *MockActivationRepo) FindByLicenseAndDomain(ctx context.Context, tx repository.Tx, licenseID, dom string) (*model.LicenseActivation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.store {
		if a.LicenseID == licenseID && a.Domain == dom {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockActivationRepo) CountActive(ctx context.Context, tx repository.Tx, licenseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(licenseID), nil
}

func (m *MockActivationRepo) CountAllActive(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.store {
		if a.DeactivatedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *MockActivationRepo) countActiveLocked(licenseID string) int {
	n := 0
	for _, a := range m.store {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			n++
		}
	}
	return n
}

func (m *MockActivationRepo) ListActive(ctx context.Context, tx repository.Tx, licenseID string) ([]*model.LicenseActivation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LicenseActivation
	for _, a := range m.store {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockActivationRepo) InsertIfUnderLimit(ctx context.Context, a *model.LicenseActivation) error {
	if m.InsertIfUnderLimitFunc != nil {
		return m.InsertIfUnderLimitFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, err := m.Licenses.FindByID(ctx, repository.NoTX, a.LicenseID)
	if err != nil {
		return err
	}
	if !lic.CanActivateMore(m.countActiveLocked(a.LicenseID)) {
		return domain.ErrDomainLimitReached
	}
	cp := *a
	m.store[a.ID] = &cp
	return m.Licenses.TouchValidated(ctx, repository.NoTX, a.LicenseID, time.Now())
}

func (m *MockActivationRepo) Reactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.DeactivatedAt = nil
	a.ActivatedAt = at
	return nil
}

func (m *MockActivationRepo) Deactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.DeactivatedAt == nil {
		stamp := at
		a.DeactivatedAt = &stamp
	}
	return nil
}

func (m *MockActivationRepo) DeactivateAll(ctx context.Context, tx repository.Tx, licenseID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.store {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			stamp := at
			a.DeactivatedAt = &stamp
			n++
		}
	}
	return n, nil
}

func (m *MockActivationRepo) TouchChecked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	stamp := at
	a.LastCheckedAt = &stamp
	return nil
}

// rows returns all stored activation rows for assertions.
func (m *MockActivationRepo) rows(licenseID string) []*model.LicenseActivation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LicenseActivation
	for _, a := range m.store {
		if a.LicenseID == licenseID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

var _ repository.ActivationRepository = (*MockActivationRepo)(nil)

// =============================
// Subscription / package / product / user repositories
// =============================

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription

	FindByProviderIDFunc func(ctx context.Context, tx repository.Tx, providerID string) (*model.Subscription, error)
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerID string) (*model.Subscription, error) {
	if m.FindByProviderIDFunc != nil {
		return m.FindByProviderIDFunc(ctx, tx, providerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.ProviderID == providerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindByUserAndType(ctx context.Context, tx repository.Tx, userID, typ string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Type == typ {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, typ, priceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Type = typ
	s.PriceID = priceID
	return nil
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

type MockPackageRepo struct {
	mu    sync.Mutex
	store map[string]*model.Package
}

func NewMockPackageRepo() *MockPackageRepo {
	return &MockPackageRepo{store: make(map[string]*model.Package)}
}

func (m *MockPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPackageRepo) FindByPriceID(ctx context.Context, tx repository.Tx, priceID string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.HasPrice(priceID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPackageRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

type MockProductRepo struct {
	mu    sync.Mutex
	store map[string]*model.Product
}

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{store: make(map[string]*model.Product)}
}

func (m *MockProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockProductRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Product, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =============================
// Billing gateway
// =============================

type MockBillingGateway struct {
	mu    sync.Mutex
	Swaps []string // "providerSubID:priceID"

	SwapPriceFunc func(ctx context.Context, providerSubscriptionID, priceID string) error
}

func (m *MockBillingGateway) SwapPrice(ctx context.Context, providerSubscriptionID, priceID string) error {
	if m.SwapPriceFunc != nil {
		return m.SwapPriceFunc(ctx, providerSubscriptionID, priceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Swaps = append(m.Swaps, providerSubscriptionID+":"+priceID)
	return nil
}
