package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/infra/redis"
	"plugin-license-server/internal/usecase"
)

// Server is the public license API: the four license operations, the billing
// webhook, health and metrics.
type Server struct {
	uc           *usecase.LicenseUseCase
	webhook      http.Handler
	limiter      *redis.RateLimiter
	cfg          config.ServerConfig
	rl           config.RateLimitConfig
	trustProxies bool
	log          *zerolog.Logger

	srv *http.Server
}

func NewServer(
	uc *usecase.LicenseUseCase,
	webhook http.Handler,
	limiter *redis.RateLimiter,
	cfg config.ServerConfig,
	rl config.RateLimitConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	return &Server{
		uc:           uc,
		webhook:      webhook,
		limiter:      limiter,
		cfg:          cfg,
		rl:           rl,
		trustProxies: cfg.TrustedProxies,
		log:          &l,
	}
}

// Router builds the route tree. Exposed separately from Start for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.webhook != nil {
		r.Method(http.MethodPost, "/webhook/stripe", s.webhook)
	}

	mws := []Middleware{
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(10 * time.Second),
	}
	if s.limiter != nil && s.rl.Enabled {
		mws = append(mws, RateLimit(s.limiter, s.rl.Limit, s.rl.Window, s.trustProxies, s.log))
	}

	r.Route("/api/v1/license", func(lr chi.Router) {
		for _, mw := range mws {
			lr.Use(mw)
		}
		lr.Post("/validate", s.handleValidate)
		lr.Post("/activate", s.handleActivate)
		lr.Post("/deactivate", s.handleDeactivate)
		lr.Post("/check", s.handleCheck)
	})

	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("license API listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
