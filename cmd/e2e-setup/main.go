package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
	"plugin-license-server/internal/infra/db/postgres"
	"plugin-license-server/internal/infra/redis"
)

// This script sets up a clean, predictable database state for manual
// end-to-end testing against a running server.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean Redis so stale provisioning locks and rate-limit counters are gone.
	log.Println("[1/3] Wiping Redis...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	// 2. Clean the database completely.
	log.Println("[2/3] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			users, products, packages, subscriptions,
			licenses, license_activations
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed a catalog, a user with a subscription, and an issued license.
	log.Println("[3/3] Seeding test data...")
	seedTestData(ctx, pool)

	log.Println("--- E2E Environment Setup Complete ---")
}

func seedTestData(ctx context.Context, pool *pgxpool.Pool) {
	productRepo := postgres.NewProductRepo(pool)
	packageRepo := postgres.NewPackageRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	subRepo := postgres.NewSubscriptionRepo(pool)
	licenseRepo := postgres.NewLicenseRepo(pool)

	product, _ := model.NewProduct(uuid.NewString(), "form-builder", "Form Builder", model.ProductTypePlugin)
	if err := productRepo.Save(ctx, repository.NoTX, product); err != nil {
		log.Fatalf("save product: %v", err)
	}

	limit := 3
	pkg, _ := model.NewPackage(uuid.NewString(), product.ID, "pro", "Pro", &limit, "price_pro_monthly", "price_pro_yearly")
	if err := packageRepo.Save(ctx, repository.NoTX, pkg); err != nil {
		log.Fatalf("save package: %v", err)
	}

	user, _ := model.NewUser(uuid.NewString(), "e2e@example.com", "E2E Tester")
	if err := userRepo.Save(ctx, repository.NoTX, user); err != nil {
		log.Fatalf("save user: %v", err)
	}

	sub, _ := model.NewSubscription(uuid.NewString(), user.ID, "sub_e2e_test", product.Slug, pkg.MonthlyPriceID)
	if err := subRepo.Save(ctx, repository.NoTX, sub); err != nil {
		log.Fatalf("save subscription: %v", err)
	}

	lic, _ := model.NewLicense(uuid.NewString(), user.ID, product.ID, pkg.ID, &sub.ID, pkg.DomainLimit, nil)
	if err := licenseRepo.Save(ctx, repository.NoTX, lic); err != nil {
		log.Fatalf("save license: %v", err)
	}

	log.Printf("seeded license key: %s", lic.LicenseKey)
}
