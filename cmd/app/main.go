// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/domain/ports/adapter"
	"plugin-license-server/internal/infra/api"
	"plugin-license-server/internal/infra/billing"
	pg "plugin-license-server/internal/infra/db/postgres"
	"plugin-license-server/internal/infra/logging"
	"plugin-license-server/internal/infra/metrics"
	red "plugin-license-server/internal/infra/redis"
	"plugin-license-server/internal/infra/sched"
	"plugin-license-server/internal/infra/web"
	"plugin-license-server/internal/infra/worker"
	"plugin-license-server/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no-op billing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer func() { _ = redisClient.Close() }()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	licenseRepo := pg.NewLicenseRepo(pool)
	activationRepo := pg.NewActivationRepo(pool, tm)
	packageRepo := pg.NewPackageRepo(pool)
	subscriptionRepo := pg.NewSubscriptionRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// ---- Billing gateway ----
	var gateway adapter.BillingGateway
	if cfg.Runtime.Dev || cfg.Stripe.APIKey == "" {
		if !cfg.Runtime.Dev {
			logger.Warn().Msg("stripe.api_key not set; plan changes will not reach the billing provider")
		}
		gateway = billing.NewNoopGateway(logger)
	} else {
		gateway = billing.NewStripeGateway(cfg.Stripe.APIKey, logger)
	}

	// ---- Use cases ----
	licenseUC := usecase.NewLicenseUseCase(licenseRepo, activationRepo, logger)
	provisionUC := usecase.NewProvisionUseCase(subscriptionRepo, packageRepo, userRepo, licenseRepo, logger)
	planChangeUC := usecase.NewPlanChangeUseCase(subscriptionRepo, packageRepo, licenseRepo, activationRepo, gateway, tm, logger)

	// ---- Provisioning pipeline ----
	pool2 := worker.NewPool(cfg.Provisioning.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	processor := worker.NewProvisionProcessor(provisionUC, pool2, locker, cfg.Provisioning, logger)
	webhook := billing.NewWebhookHandler(cfg.Stripe.WebhookSecret, processor, logger)

	// ---- HTTP servers ----
	apiServer := api.NewServer(licenseUC, webhook, rateLimiter, cfg.Server, cfg.RateLimit, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("license API server stopped")
		}
	}()

	adminServer := web.NewServer(licenseUC, planChangeUC, cfg.Admin, cfg.Runtime.Dev, logger)
	go func() {
		if err := adminServer.Start(); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Expiry sweep ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, licenseUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Pool stats gauge ----
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer done()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("license API shutdown")
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin shutdown")
	}
	cancel()
}
