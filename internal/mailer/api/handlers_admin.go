package api

import (
	"net/http"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
)

// usedIPsHandler lists every address ever assigned. The orchestrator enforces
// the admin role.
func (s *Server) usedIPsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		ips, err := s.orchestrator.ListUsedIPs(r.Context(), p.Role)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, ConvertToAPIUsedIPs(ips))
	}
}

// createUserHandler provisions an account. Guarded by the admin key.
func (s *Server) createUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := GetLogger(r.Context())
		op := logger.StartOp(r.Context(), "createUserHandler")

		var req pkgapi.CreateUserRequest
		if err := DecodeAndValidate(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		acc, err := s.accounts.CreateUser(op.Context(), req.Username, req.Password, req.Points, account.Role(req.Role))
		if err != nil {
			op.Fail(err, "failed to create user")
			WriteErrorResponse(w, r, err)
			return
		}

		if err := WriteCreated(w, ConvertToAPIUser(acc)); err != nil {
			op.Fail(err, "failed to encode user response")
			return
		}
		op.Complete("user created", "user_id", acc.ID, "role", string(acc.Role))
	}
}
