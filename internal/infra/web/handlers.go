package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
)

type licenseDTO struct {
	ID              string     `json:"id"`
	LicenseKey      string     `json:"license_key"`
	UserID          string     `json:"user_id"`
	ProductID       string     `json:"product_id"`
	PackageID       string     `json:"package_id"`
	SubscriptionID  *string    `json:"subscription_id,omitempty"`
	DomainLimit     *int       `json:"domain_limit,omitempty"`
	Status          string     `json:"status"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toLicenseDTO(l *model.License) licenseDTO {
	return licenseDTO{
		ID:              l.ID,
		LicenseKey:      l.LicenseKey,
		UserID:          l.UserID,
		ProductID:       l.ProductID,
		PackageID:       l.PackageID,
		SubscriptionID:  l.SubscriptionID,
		DomainLimit:     l.DomainLimit,
		Status:          string(l.Status),
		ExpiresAt:       l.ExpiresAt,
		LastValidatedAt: l.LastValidatedAt,
		CreatedAt:       l.CreatedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.passwordMatches(req.Password) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("admin login rejected")
		writeAdminError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.log.Error().Err(err).Msg("failed to mint admin session")
		writeAdminError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAdminJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	writeAdminJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	byStatus, err := s.licUC.CountByStatus(r.Context())
	if err != nil {
		s.adminFail(w, err, "count licenses")
		return
	}
	activations, err := s.licUC.ActiveActivations(r.Context())
	if err != nil {
		s.adminFail(w, err, "count activations")
		return
	}
	statuses := make(map[string]int, len(byStatus))
	for st, n := range byStatus {
		statuses[string(st)] = n
	}
	writeAdminJSON(w, http.StatusOK, map[string]any{
		"licenses_by_status": statuses,
		"active_activations": activations,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	offset := intQuery(r, "offset", 0)
	limit := intQuery(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	licenses, err := s.licUC.List(r.Context(), offset, limit)
	if err != nil {
		s.adminFail(w, err, "list licenses")
		return
	}
	items := make([]licenseDTO, 0, len(licenses))
	for _, l := range licenses {
		items = append(items, toLicenseDTO(l))
	}
	writeAdminJSON(w, http.StatusOK, map[string]any{
		"data":   items,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	lic, err := s.licUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.adminFail(w, err, "get license")
		return
	}
	writeAdminJSON(w, http.StatusOK, toLicenseDTO(lic))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string     `json:"user_id"`
		ProductID   string     `json:"product_id"`
		PackageID   string     `json:"package_id"`
		DomainLimit *int       `json:"domain_limit"`
		ExpiresAt   *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.PackageID == "" {
		writeAdminError(w, http.StatusBadRequest, "user_id, product_id and package_id are required")
		return
	}
	lic, err := s.licUC.CreateManual(r.Context(), req.UserID, req.ProductID, req.PackageID, req.DomainLimit, req.ExpiresAt)
	if err != nil {
		s.adminFail(w, err, "create license")
		return
	}
	writeAdminJSON(w, http.StatusCreated, toLicenseDTO(lic))
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	if err := s.licUC.Suspend(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.adminFail(w, err, "suspend license")
		return
	}
	writeAdminJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.licUC.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.adminFail(w, err, "resume license")
		return
	}
	writeAdminJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeactivateDomains(w http.ResponseWriter, r *http.Request) {
	n, err := s.licUC.DeactivateAllDomains(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.adminFail(w, err, "deactivate domains")
		return
	}
	writeAdminJSON(w, http.StatusOK, map[string]any{"success": true, "deactivated": n})
}

func (s *Server) handlePlanChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string `json:"user_id"`
		SubscriptionID string `json:"subscription_id"`
		PackageID      string `json:"package_id"`
		Interval       string `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.SubscriptionID == "" || req.PackageID == "" {
		writeAdminError(w, http.StatusBadRequest, "user_id, subscription_id and package_id are required")
		return
	}
	lic, err := s.planUC.ChangePlan(r.Context(), req.UserID, req.SubscriptionID, req.PackageID, req.Interval)
	if err != nil {
		s.adminFail(w, err, "change plan")
		return
	}
	writeAdminJSON(w, http.StatusOK, toLicenseDTO(lic))
}

// adminFail maps domain errors to HTTP status codes; anything unexpected is
// logged and hidden behind a generic message.
func (s *Server) adminFail(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeAdminError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeAdminError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCannotDowngrade):
		writeAdminError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeAdminError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("op", op).Msg("admin request failed")
		writeAdminError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeAdminJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAdminError(w http.ResponseWriter, status int, msg string) {
	writeAdminJSON(w, status, map[string]any{"success": false, "error": msg})
}

func intQuery(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}
