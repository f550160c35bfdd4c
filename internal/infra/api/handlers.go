package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/infra/logging"
	"plugin-license-server/internal/infra/metrics"
)

// licenseRequest is the common body of all four public operations. The license
// key doubles as the credential; there is no separate auth header.
type licenseRequest struct {
	LicenseKey  string `json:"license_key"`
	ProductSlug string `json:"product_slug"`
	Domain      string `json:"domain"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, r, ok := s.decode(w, r, "validate", start)
	if !ok {
		return
	}

	proj, err := s.uc.Validate(r.Context(), req.LicenseKey, req.ProductSlug)
	if err != nil {
		s.fail(w, r, "validate", err, start)
		return
	}
	metrics.ObserveAPIRequest("validate", "ok", int(time.Since(start).Milliseconds()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"license": proj,
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, r, ok := s.decode(w, r, "activate", start)
	if !ok {
		return
	}

	ip := ClientIP(r, s.trustProxies)
	res, err := s.uc.Activate(r.Context(), req.LicenseKey, req.ProductSlug, req.Domain, ip, r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDomainLimitReached):
			metrics.IncActivation("limit_reached")
		case errors.Is(err, domain.ErrLicenseInvalid), errors.Is(err, domain.ErrLicenseInactive):
			metrics.IncActivation("invalid")
		}
		s.fail(w, r, "activate", err, start)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
		metrics.IncActivation("created")
	} else {
		metrics.IncActivation("reused")
	}
	metrics.ObserveAPIRequest("activate", "ok", int(time.Since(start).Milliseconds()))
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"message": res.Message,
		"license": res.License,
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, r, ok := s.decode(w, r, "deactivate", start)
	if !ok {
		return
	}

	if err := s.uc.Deactivate(r.Context(), req.LicenseKey, req.ProductSlug, req.Domain); err != nil {
		s.fail(w, r, "deactivate", err, start)
		return
	}
	metrics.ObserveAPIRequest("deactivate", "ok", int(time.Since(start).Milliseconds()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "domain deactivated",
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, r, ok := s.decode(w, r, "check", start)
	if !ok {
		return
	}

	res, err := s.uc.Check(r.Context(), req.LicenseKey, req.ProductSlug, req.Domain)
	if err != nil {
		s.fail(w, r, "check", err, start)
		return
	}
	metrics.ObserveAPIRequest("check", "ok", int(time.Since(start).Milliseconds()))
	body := map[string]interface{}{
		"success":       true,
		"activated":     res.Activated,
		"license_valid": res.LicenseValid,
	}
	if res.License != nil {
		body["license"] = res.License
	}
	writeJSON(w, http.StatusOK, body)
}

// decode parses the request body and tags the request context with the
// redacted license key, so every later log line for this request carries it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, start time.Time) (licenseRequest, *http.Request, bool) {
	var req licenseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		metrics.ObserveAPIRequest(op, "bad_request", int(time.Since(start).Milliseconds()))
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with license_key and product_slug")
		return licenseRequest{}, r, false
	}
	if req.LicenseKey != "" {
		r = r.WithContext(logging.WithLicenseKey(r.Context(), logging.Redact(req.LicenseKey)))
	}
	return req, r, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, start time.Time) {
	status, code := mapError(err)
	metrics.ObserveAPIRequest(op, code, int(time.Since(start).Milliseconds()))
	if status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Str("op", op).Err(err).Msg("license operation failed")
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// mapError turns domain sentinels into the stable error codes client
// integrations branch on.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrLicenseInvalid):
		return http.StatusNotFound, "license_invalid"
	case errors.Is(err, domain.ErrLicenseInactive):
		return http.StatusForbidden, "license_inactive"
	case errors.Is(err, domain.ErrDomainLimitReached):
		return http.StatusForbidden, "domain_limit_reached"
	case errors.Is(err, domain.ErrActivationNotFound):
		return http.StatusNotFound, "activation_not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errorBody{Message: message, Code: code},
	})
}

// ClientIP extracts the requester's address, honoring X-Forwarded-For only
// when the server is configured to sit behind a trusted proxy.
func ClientIP(r *http.Request, trustProxies bool) string {
	if trustProxies {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
