//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/usecase"
)

type planChangeFixture struct {
	subs        *MockSubscriptionRepo
	packages    *MockPackageRepo
	licenses    *MockLicenseRepo
	activations *MockActivationRepo
	billing     *MockBillingGateway
	uc          *usecase.PlanChangeUseCase
	sub         *model.Subscription
	basic       *model.Package
	pro         *model.Package
}

// newPlanChangeFixture seeds a subscription on the "basic" package (limit 1)
// with a provisioned license, plus a "pro" package (limit 5) to move to.
func newPlanChangeFixture(t *testing.T, withLicense bool) *planChangeFixture {
	t.Helper()
	ctx := context.Background()

	subs := NewMockSubscriptionRepo()
	packages := NewMockPackageRepo()
	licenses := NewMockLicenseRepo()
	activations := NewMockActivationRepo(licenses)
	billing := &MockBillingGateway{}

	one, five := 1, 5
	basic, _ := model.NewPackage("pkg-basic", "prod-1", "basic", "Basic", &one, "price_basic_m", "price_basic_y")
	pro, _ := model.NewPackage("pkg-pro", "prod-1", "pro", "Pro", &five, "price_pro_m", "price_pro_y")
	if err := packages.Save(ctx, nil, basic); err != nil {
		t.Fatal(err)
	}
	if err := packages.Save(ctx, nil, pro); err != nil {
		t.Fatal(err)
	}

	sub, _ := model.NewSubscription("sub-1", "user-1", "sub_stripe_1", "basic", "price_basic_m")
	if err := subs.Save(ctx, nil, sub); err != nil {
		t.Fatal(err)
	}

	f := &planChangeFixture{
		subs:        subs,
		packages:    packages,
		licenses:    licenses,
		activations: activations,
		billing:     billing,
		sub:         sub,
		basic:       basic,
		pro:         pro,
	}
	f.uc = usecase.NewPlanChangeUseCase(subs, packages, licenses, activations, billing, NewMockTxManager(), newTestLogger())

	if withLicense {
		lic, _ := model.NewLicense("lic-1", "user-1", "prod-1", basic.ID, &sub.ID, basic.DomainLimit, nil)
		if err := licenses.Save(ctx, nil, lic); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestPlanChangeUseCase_ChangePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("same price is a no-op", func(t *testing.T) {
		f := newPlanChangeFixture(t, true)
		_, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.basic.ID, "monthly")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(f.billing.Swaps) != 0 {
			t.Error("expected no billing call on a no-op")
		}
	})

	t.Run("upgrade swaps price and propagates the new limit", func(t *testing.T) {
		f := newPlanChangeFixture(t, true)
		lic, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.pro.ID, "monthly")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(f.billing.Swaps) != 1 || f.billing.Swaps[0] != "sub_stripe_1:price_pro_m" {
			t.Errorf("unexpected billing calls: %v", f.billing.Swaps)
		}
		if lic.PackageID != f.pro.ID {
			t.Errorf("expected license on pro package, got %q", lic.PackageID)
		}
		if lic.DomainLimit == nil || *lic.DomainLimit != 5 {
			t.Error("expected domain limit raised to 5")
		}
		sub, _ := f.subs.FindByID(ctx, nil, "sub-1")
		if sub.PriceID != "price_pro_m" || sub.Type != "pro" {
			t.Errorf("expected subscription updated, got %+v", sub)
		}
	})

	t.Run("downgrade is refused while too many domains are active", func(t *testing.T) {
		f := newPlanChangeFixture(t, true)
		// Move to pro first, then bind two domains.
		if _, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.pro.ID, "monthly"); err != nil {
			t.Fatal(err)
		}
		for _, dom := range []string{"a.com", "b.com"} {
			a, _ := model.NewLicenseActivation("act-"+dom, "lic-1", dom, "", "")
			if err := f.activations.InsertIfUnderLimit(ctx, a); err != nil {
				t.Fatal(err)
			}
		}

		_, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.basic.ID, "monthly")
		if !errors.Is(err, domain.ErrCannotDowngrade) {
			t.Fatalf("expected ErrCannotDowngrade, got %v", err)
		}
		if !strings.Contains(err.Error(), "2") || !strings.Contains(err.Error(), "1") {
			t.Errorf("expected active count and new limit in message, got %q", err.Error())
		}
		sub, _ := f.subs.FindByID(ctx, nil, "sub-1")
		if sub.PriceID != "price_pro_m" {
			t.Error("expected subscription untouched after refusal")
		}
	})

	t.Run("missing license is self-healed during the swap", func(t *testing.T) {
		f := newPlanChangeFixture(t, false)
		lic, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.pro.ID, "yearly")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if lic == nil {
			t.Fatal("expected a license to be created")
		}
		if lic.SubscriptionID == nil || *lic.SubscriptionID != "sub-1" {
			t.Error("expected license bound to the subscription")
		}
		if len(f.billing.Swaps) != 1 || f.billing.Swaps[0] != "sub_stripe_1:price_pro_y" {
			t.Errorf("unexpected billing calls: %v", f.billing.Swaps)
		}
	})

	t.Run("foreign subscription is invisible", func(t *testing.T) {
		f := newPlanChangeFixture(t, true)
		_, err := f.uc.ChangePlan(ctx, "user-other", "sub-1", f.pro.ID, "monthly")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("billing failure aborts the local update", func(t *testing.T) {
		f := newPlanChangeFixture(t, true)
		f.billing.SwapPriceFunc = func(ctx context.Context, subID, priceID string) error {
			return domain.ErrOperationFailed
		}
		_, err := f.uc.ChangePlan(ctx, "user-1", "sub-1", f.pro.ID, "monthly")
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		sub, _ := f.subs.FindByID(ctx, nil, "sub-1")
		if sub.PriceID != "price_basic_m" {
			t.Error("expected subscription price unchanged after billing failure")
		}
	})
}
