package model

import (
	"time"

	"plugin-license-server/internal/domain"
)

type ProductType string

const (
	ProductTypePlugin     ProductType = "plugin"
	ProductTypeTheme      ProductType = "theme"
	ProductTypeSourceCode ProductType = "source-code"
)

// Product is a sellable item (plugin, theme, source code bundle). Licenses
// reference it by id; the public API addresses it by slug.
type Product struct {
	ID        string
	Slug      string
	Name      string
	Type      ProductType
	Active    bool
	CreatedAt time.Time
}

// NewProduct validates and constructs a product.
func NewProduct(id, slug, name string, typ ProductType) (*Product, error) {
	if id == "" || slug == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Product{
		ID:        id,
		Slug:      slug,
		Name:      name,
		Type:      typ,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}

// Package is a pricing tier of a Product. DomainLimit nil means unlimited.
// Licenses copy DomainLimit at issuance time; it is not a live join, so plan
// changes must propagate the new limit explicitly.
type Package struct {
	ID             string
	ProductID      string
	Slug           string
	Name           string
	DomainLimit    *int
	MonthlyPriceID string
	YearlyPriceID  string
	Active         bool
	CreatedAt      time.Time
}

// NewPackage validates and constructs a package.
func NewPackage(id, productID, slug, name string, domainLimit *int, monthlyPriceID, yearlyPriceID string) (*Package, error) {
	if id == "" || productID == "" || slug == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if domainLimit != nil && *domainLimit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Package{
		ID:             id,
		ProductID:      productID,
		Slug:           slug,
		Name:           name,
		DomainLimit:    domainLimit,
		MonthlyPriceID: monthlyPriceID,
		YearlyPriceID:  yearlyPriceID,
		Active:         true,
		CreatedAt:      time.Now(),
	}, nil
}

// HasPrice reports whether the given billing price id belongs to this package.
func (p *Package) HasPrice(priceID string) bool {
	if priceID == "" {
		return false
	}
	return p.MonthlyPriceID == priceID || p.YearlyPriceID == priceID
}

// PriceFor returns the billing price id for the interval ("monthly"|"yearly").
func (p *Package) PriceFor(interval string) string {
	if interval == "yearly" {
		return p.YearlyPriceID
	}
	return p.MonthlyPriceID
}
