package api

import (
	"net/http"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
)

// loginHandler exchanges username and password for a bearer token.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req pkgapi.LoginRequest
		if err := DecodeAndValidate(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		acc, err := s.accounts.FindByCredentials(ctx, req.Username, req.Password)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		issuedAt := s.now()
		token, err := s.tokens.Issue(acc.ID, acc.Role)
		if err != nil {
			WriteErrorResponse(w, r, apperrors.WrapWithDomain(err, apperrors.DomainAuth,
				apperrors.ErrCodeInternal, "failed to issue token", false))
			return
		}

		GetLogger(ctx).WithContext(ctx).Info("user logged in", "user_id", acc.ID)
		_ = WriteSuccess(w, pkgapi.LoginResponse{
			Token:     token,
			ExpiresAt: issuedAt.Add(s.tokens.TTL()).UTC(),
			UserID:    acc.ID,
			Role:      string(acc.Role),
		})
	}
}

func (s *Server) pointsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		balance, err := s.accounts.GetBalance(r.Context(), p.UserID)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, pkgapi.PointsResponse{UserID: p.UserID, Points: balance})
	}
}

// principal returns the authenticated caller. Routes using it are wrapped in
// Authenticate, so a missing principal is a wiring bug.
func principal(r *http.Request) Principal {
	p, ok := GetPrincipal(r.Context())
	if !ok {
		panic("api: handler reached without authentication")
	}
	return p
}
