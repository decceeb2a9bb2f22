package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/lease"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// Terminate tears the server down. Provider cleanup is best effort; the
// record is always removed.
func (o *Orchestrator) Terminate(ctx context.Context, serverID, userID string) error {
	ctx = logger.WithServerID(logger.WithUserID(ctx, userID), serverID)
	op := o.logger.StartOp(ctx, "Terminate")
	ctx = op.Context()

	s, err := o.ownedServer(ctx, serverID, userID)
	if err != nil {
		return err
	}

	l, err := o.acquire(ctx, lease.ServerKey(serverID), serverProviderCalls)
	if err != nil {
		return err
	}
	defer o.release(ctx, l)

	if err := o.teardown(ctx, s); err != nil {
		op.Fail(err, "failed to remove server record")
		return err
	}

	o.events.Terminated(ctx, s)
	op.Complete("server terminated", slog.String("ip", s.IP))
	return nil
}

// ExpirySweep tears down every server whose lease has ended and returns how
// many were reaped. One failing server does not stop the sweep.
func (o *Orchestrator) ExpirySweep(ctx context.Context) (int, error) {
	op := o.logger.StartOp(ctx, "ExpirySweep")
	ctx = op.Context()

	expired, err := o.servers.ListExpired(ctx, o.now())
	if err != nil {
		op.Fail(err, "failed to list expired servers")
		return 0, err
	}

	reaped := 0
	for _, s := range expired {
		if ctx.Err() != nil {
			break
		}
		if o.reap(logger.WithServerID(ctx, s.ID), s, "expired") {
			reaped++
		}
	}

	if len(expired) > 0 {
		op.Complete("expiry sweep finished",
			slog.Int("expired", len(expired)),
			slog.Int("reaped", reaped))
	}
	return reaped, ctx.Err()
}

// ReconcileStale restarts probes for servers stuck in starting or rotating_ip
// with no probe running, such as after a restart. It returns the number of
// probes started.
func (o *Orchestrator) ReconcileStale(ctx context.Context) (int, error) {
	now := o.now()
	stale, err := o.servers.ListStaleTransitioning(ctx, now.Add(-o.cfg.QuiescenceWindow))
	if err != nil {
		o.logger.ErrorCtx(ctx, "failed to list stale servers", err)
		return 0, err
	}

	started := 0
	for _, s := range stale {
		if s.IsExpired(now) || o.probes.InFlight(s.ID) {
			continue
		}
		if o.startProbe(s, o.cfg.RecheckAttempts, o.cfg.RecheckDelay, nil) {
			started++
		}
	}

	if started > 0 {
		o.logger.WithContext(ctx).Info("restarted readiness probes", slog.Int("count", started))
	}
	return started, nil
}

// reap tears s down under its lease. Servers leased by another operation are
// left for a later pass.
func (o *Orchestrator) reap(ctx context.Context, s *server.Server, reason string) bool {
	l, err := o.acquire(ctx, lease.ServerKey(s.ID), serverProviderCalls)
	if err != nil {
		o.logger.WithContext(ctx).Debug("server busy, not reaping", slog.String("server_id", s.ID))
		return false
	}
	defer o.release(ctx, l)

	if err := o.teardown(ctx, s); err != nil {
		o.logger.ErrorCtx(ctx, "failed to reap server", err,
			slog.String("server_id", s.ID),
			slog.String("reason", reason))
		return false
	}

	if s.IsExpired(o.now()) {
		o.events.Expired(ctx, s)
	} else {
		o.events.Terminated(ctx, s)
	}
	o.logger.WithContext(ctx).Info("server reaped",
		slog.String("server_id", s.ID),
		slog.String("reason", reason))
	return true
}

// teardown releases the floating address, deletes the instance unless it is
// already going away, and deletes the record. Only the record deletion can fail.
func (o *Orchestrator) teardown(ctx context.Context, s *server.Server) error {
	o.probes.Cancel(s.ID)

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()

	if s.IsPersistent() {
		region := o.adapter.RegionOf(s.Zone)
		if handle := o.findFloatingIP(pctx, region, s.IP); handle != "" {
			o.releaseFloatingIP(pctx, region, handle, s.IP)
		}
	}

	state, err := o.adapter.GetInstanceState(pctx, s.ProviderInstanceID, s.Zone)
	if err != nil {
		o.logger.WarnErr(ctx, "provider state unavailable, deleting instance anyway", err,
			slog.String("instance_id", s.ProviderInstanceID))
	}
	if err != nil || !state.IsDeleting() {
		if err := o.adapter.DeleteInstance(pctx, s.ProviderInstanceID, s.Zone); err != nil {
			o.logger.ErrorCtx(ctx, "failed to delete instance", err,
				slog.String("instance_id", s.ProviderInstanceID),
				slog.String("zone", s.Zone))
		}
	}

	if err := o.servers.Delete(context.WithoutCancel(ctx), s.ID); err != nil && !errors.Is(err, server.ErrServerNotFound) {
		return err
	}
	return nil
}
