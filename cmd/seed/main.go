package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
	pg "plugin-license-server/internal/infra/db/postgres"
)

func intPtr(v int) *int { return &v }

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	productRepo := pg.NewProductRepo(pool)
	packageRepo := pg.NewPackageRepo(pool)

	// If the catalog already exists, do nothing.
	products, err := productRepo.List(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(products) > 0 {
		fmt.Printf("%d products already present. No changes.\n", len(products))
		for _, p := range products {
			fmt.Printf("  - %s (%s)\n", p.Name, p.Slug)
		}
		return
	}

	product, err := model.NewProduct(uuid.NewString(), "form-builder", "Form Builder", model.ProductTypePlugin)
	if err != nil {
		log.Fatalf("new product: %v", err)
	}
	if err := productRepo.Save(ctx, repository.NoTX, product); err != nil {
		log.Fatalf("save product: %v", err)
	}
	fmt.Printf("seeded product: %s (id=%s)\n", product.Slug, product.ID)

	tiers := []struct {
		Slug    string
		Name    string
		Limit   *int
		Monthly string
		Yearly  string
	}{
		{"basic", "Basic", intPtr(1), "price_basic_monthly", "price_basic_yearly"},
		{"pro", "Pro", intPtr(3), "price_pro_monthly", "price_pro_yearly"},
		{"agency", "Agency", nil, "price_agency_monthly", "price_agency_yearly"},
	}

	for _, tier := range tiers {
		pkg, err := model.NewPackage(uuid.NewString(), product.ID, tier.Slug, tier.Name, tier.Limit, tier.Monthly, tier.Yearly)
		if err != nil {
			log.Fatalf("new package %q: %v", tier.Slug, err)
		}
		if err := packageRepo.Save(ctx, repository.NoTX, pkg); err != nil {
			log.Fatalf("save package %q: %v", tier.Slug, err)
		}
		limit := "unlimited"
		if pkg.DomainLimit != nil {
			limit = fmt.Sprintf("%d", *pkg.DomainLimit)
		}
		fmt.Printf("seeded package: %s (id=%s, domains=%s)\n", pkg.Slug, pkg.ID, limit)
	}

	fmt.Println("Seeding complete.")
}
