package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/lease"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// RotateIP moves a running persistent server onto a fresh floating address.
// The old address is released and the new one probed in the background.
func (o *Orchestrator) RotateIP(ctx context.Context, serverID, userID string) (server.View, error) {
	ctx = logger.WithServerID(logger.WithUserID(ctx, userID), serverID)
	op := o.logger.StartOp(ctx, "RotateIP")
	ctx = op.Context()

	s, err := o.ownedServer(ctx, serverID, userID)
	if err != nil {
		return server.View{}, err
	}
	if !s.IsPersistent() {
		return server.View{}, server.NewInvalidOperationError("ip rotation is only available for persistent servers")
	}

	state, err := o.adapter.GetInstanceState(ctx, s.ProviderInstanceID, s.Zone)
	if err != nil {
		op.Fail(err, "failed to read provider state")
		return server.View{}, err
	}
	if state != server.ProviderRunning {
		return server.View{}, server.NewInvalidOperationError("server is not running").
			WithMetadata("provider_state", string(state))
	}

	l, err := o.acquire(ctx, lease.ServerKey(serverID), serverProviderCalls)
	if err != nil {
		return server.View{}, err
	}
	defer o.release(ctx, l)

	// Re-read under the lease. rotating_ip left behind by a crashed rotation is resumed.
	if s, err = o.servers.Get(ctx, serverID); err != nil {
		return server.View{}, err
	}
	if s.Status != server.StatusRotatingIP {
		if !s.Status.CanTransitionTo(server.StatusRotatingIP) {
			return server.View{}, server.NewInvalidOperationError("server cannot rotate its address in its current status").
				WithMetadata("status", string(s.Status))
		}
		version, err := o.servers.UpdateStatus(ctx, s.ID, s.Version, server.StatusRotatingIP)
		if err != nil {
			op.Fail(err, "failed to mark server as rotating")
			return server.View{}, err
		}
		prev := s.Status
		s.Status, s.Version = server.StatusRotatingIP, version
		o.events.StatusChanged(ctx, s, prev, s.Status, "ip rotation")
	}

	// A probe against the old address must not report on the new one
	o.probes.Cancel(s.ID)

	region := o.adapter.RegionOf(s.Zone)
	pctx, cancel := o.providerCtx(ctx)
	defer cancel()

	fip, err := o.ledger.DrawFreshAddress(pctx, region, userID, s.ProviderInstanceID, o.cfg.IPRotationMaxAttempts)
	if err != nil {
		return server.View{}, o.failRotation(ctx, op, s, err)
	}

	oldHandle := o.findFloatingIP(pctx, region, s.IP)

	if err := o.adapter.AssociateFloatingIP(pctx, s.ProviderInstanceID, s.Zone, fip.Handle); err != nil {
		o.ledger.Release(context.WithoutCancel(ctx), region, fip)
		return server.View{}, o.failRotation(ctx, op, s, err)
	}

	version, err := o.servers.UpdateIP(ctx, s.ID, s.Version, fip.Address)
	if err != nil {
		// The instance already holds the new address; keep the old one so it is not leaked
		o.markError(context.WithoutCancel(ctx), s.ID)
		op.Fail(err, "failed to persist rotated address", slog.String("new_ip", fip.Address))
		return server.View{}, err
	}

	oldIP := s.IP
	s.IP, s.Version = fip.Address, version
	s.UpdatedAt = o.now()
	o.events.IPRotated(ctx, s, oldIP, s.IP)

	o.replaceProbe(ctx, s, func(ctx context.Context) {
		if oldHandle != "" {
			o.releaseFloatingIP(ctx, region, oldHandle, oldIP)
		}
	})

	op.Complete("ip rotated",
		slog.String("old_ip", oldIP),
		slog.String("new_ip", s.IP))
	return server.NewView(s, state), nil
}

// failRotation records the failed rotation as status error and wraps cause.
func (o *Orchestrator) failRotation(ctx context.Context, op *logger.Operation, s *server.Server, cause error) error {
	err := apperrors.WrapWithDomain(cause, apperrors.DomainServer, apperrors.ErrCodeRotationFailed,
		"ip rotation failed", apperrors.IsRetryable(cause))
	if code := apperrors.GetErrorCode(cause); code != "unknown" {
		err = err.WithMetadata("cause_code", code)
	}
	op.Fail(err, "ip rotation failed")

	o.markError(context.WithoutCancel(ctx), s.ID)
	o.events.StatusChanged(ctx, s, s.Status, server.StatusError, "ip rotation failed")
	return err
}

// findFloatingIP returns the handle of the floating IP holding address, or ""
// when the address is transient or the lookup failed.
func (o *Orchestrator) findFloatingIP(ctx context.Context, region, address string) string {
	if address == "" {
		return ""
	}
	handle, err := o.adapter.FindFloatingIPByAddress(ctx, region, address)
	if err != nil {
		if !errors.Is(err, provider.ErrFloatingIPNotFound) {
			o.logger.WarnErr(ctx, "failed to look up floating address", err, slog.String("address", address))
		}
		return ""
	}
	return handle
}

func (o *Orchestrator) releaseFloatingIP(ctx context.Context, region, handle, address string) {
	if err := o.adapter.ReleaseFloatingIP(ctx, region, handle); err != nil {
		o.logger.ErrorCtx(ctx, "failed to release floating address", err,
			slog.String("address", address),
			slog.String("handle", handle))
		return
	}
	o.logger.WithContext(ctx).Debug("released floating address", slog.String("address", address))
}
