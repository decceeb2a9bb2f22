package api

import (
	"context"
	"net/http"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
)

// healthHandler reports service health including database reachability.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := pkgapi.HealthResponse{
			Status:   "healthy",
			Version:  s.version,
			Database: "unknown",
		}

		if s.monitor != nil {
			info := s.providerInfo(false)
			response.Provider = &info
			if info.State == string(provider.CircuitStateOpen) {
				response.Status = "degraded"
			}
		}

		if s.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := s.health.Ping(ctx); err != nil {
				GetLogger(r.Context()).ErrorCtx(r.Context(), "database health check failed", err)
				response.Status = "unhealthy"
				response.Database = "unreachable"
				_ = WriteJSON(w, http.StatusServiceUnavailable, pkgapi.Response[pkgapi.HealthResponse]{
					Success: false,
					Data:    response,
				})
				return
			}
			response.Database = "ok"
		}

		_ = WriteSuccess(w, response)
	}
}

// providerStatusHandler reports the provider circuit breaker with its
// metrics. Admins only.
func (s *Server) providerStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !principal(r).IsAdmin() {
			WriteErrorResponse(w, r, apperrors.DomainErrForbidden)
			return
		}
		if s.monitor == nil {
			WriteErrorResponse(w, r, apperrors.NewSystemError(apperrors.ErrCodeProviderUnavailable,
				"provider monitoring is not available", true, nil))
			return
		}
		_ = WriteSuccess(w, s.providerInfo(true))
	}
}

func (s *Server) providerInfo(withMetrics bool) pkgapi.ProviderCircuitInfo {
	state := s.monitor.GetState()
	info := pkgapi.ProviderCircuitInfo{
		Name:            s.monitor.Name(),
		State:           string(state),
		HealthIndicator: healthIndicator(state),
	}
	if withMetrics {
		info.Metrics = s.monitor.GetMetrics()
	}
	return info
}

func healthIndicator(state provider.CircuitState) string {
	switch state {
	case provider.CircuitStateClosed:
		return "healthy"
	case provider.CircuitStateHalfOpen:
		return "recovering"
	case provider.CircuitStateOpen:
		return "unhealthy"
	default:
		return "unknown"
	}
}
