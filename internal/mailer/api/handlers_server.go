package api

import (
	"net/http"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
)

// createServerHandler provisions a server of the requested class for the caller.
func (s *Server) createServerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		logger := GetLogger(r.Context())
		op := logger.StartOp(r.Context(), "createServerHandler")

		var req pkgapi.CreateServerRequest
		if err := DecodeAndValidate(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}
		class, err := server.ParseClass(req.ServerClass)
		if err != nil {
			WriteErrorResponse(w, r, apperrors.NewDomainAPIError(apperrors.ErrCodeValidation, err.Error(), false, nil))
			return
		}

		srv, err := s.orchestrator.Create(op.Context(), p.UserID, class)
		if err != nil {
			op.Fail(err, "server creation failed")
			WriteErrorResponse(w, r, err)
			return
		}

		if err := WriteCreated(w, ConvertToAPIServer(srv)); err != nil {
			op.Fail(err, "failed to encode create response")
			return
		}
		op.Complete("server created", "server_id", srv.ID, "class", class.String())
	}
}

func (s *Server) listServersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		views, err := s.orchestrator.GetActive(r.Context(), p.UserID)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, ConvertToAPIServersList(views))
	}
}

func (s *Server) serverStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		view, err := s.orchestrator.CheckStatus(r.Context(), r.PathValue("id"), p.UserID)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, ConvertViewToAPIServer(view))
	}
}

// rotateIPHandler moves a persistent server to a fresh address. The response
// reports rotating_ip until the new address passes its probe.
func (s *Server) rotateIPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		logger := GetLogger(r.Context())
		op := logger.StartOp(r.Context(), "rotateIPHandler")

		view, err := s.orchestrator.RotateIP(op.Context(), r.PathValue("id"), p.UserID)
		if err != nil {
			op.Fail(err, "ip rotation failed")
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, ConvertViewToAPIServer(view))
		op.Complete("ip rotated", "server_id", view.Server.ID)
	}
}

func (s *Server) terminateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		id := r.PathValue("id")

		if err := s.orchestrator.Terminate(r.Context(), id, p.UserID); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, pkgapi.TerminateResponse{Message: "server terminated", ServerID: id})
	}
}
