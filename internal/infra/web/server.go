package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"plugin-license-server/internal/config"
	"plugin-license-server/internal/usecase"
)

// Server is the admin API: session login plus license management. It listens
// on its own port so the public license endpoints and the admin surface can be
// firewalled separately.
type Server struct {
	licUC  *usecase.LicenseUseCase
	planUC *usecase.PlanChangeUseCase
	auth   *SessionManager
	cfg    config.AdminConfig
	log    *zerolog.Logger

	srv *http.Server
}

func NewServer(
	licUC *usecase.LicenseUseCase,
	planUC *usecase.PlanChangeUseCase,
	cfg config.AdminConfig,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminServer").Logger()
	return &Server{
		licUC:  licUC,
		planUC: planUC,
		auth:   NewSessionManager(cfg.JWTSecret, !dev, cfg.SessionTTL),
		cfg:    cfg,
		log:    &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/admin/api/v1/login", s.handleLogin)
	r.Post("/admin/api/v1/logout", s.handleLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireSession)
		pr.Get("/admin/api/v1/stats", s.handleStats)
		pr.Get("/admin/api/v1/licenses", s.handleList)
		pr.Post("/admin/api/v1/licenses", s.handleCreate)
		pr.Get("/admin/api/v1/licenses/{id}", s.handleGet)
		pr.Post("/admin/api/v1/licenses/{id}/suspend", s.handleSuspend)
		pr.Post("/admin/api/v1/licenses/{id}/resume", s.handleResume)
		pr.Post("/admin/api/v1/licenses/{id}/deactivate-domains", s.handleDeactivateDomains)
		pr.Post("/admin/api/v1/plan-change", s.handlePlanChange)
	})

	return r
}

// requireSession rejects requests without a valid admin JWT (header or cookie).
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Verify(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// passwordMatches compares in constant time; the admin password is a shared
// operator secret, not a per-user credential.
func (s *Server) passwordMatches(given string) bool {
	if s.cfg.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.cfg.Password)) == 1
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("admin API listening")
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
