package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/health"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// replaceProbeAttempts bounds how often a rotation waits for a cancelled
// probe to drain before its own probe can start.
const replaceProbeAttempts = 3

// startProbe launches a readiness probe for s unless one is already running.
// before, if set, runs inside the task ahead of the probe.
func (o *Orchestrator) startProbe(s *server.Server, attempts int, delay time.Duration, before func(context.Context)) bool {
	_, started := o.probes.Run(s.ID, o.probeTask(s, attempts, delay, before))
	return started
}

// replaceProbe cancels any running probe for s and starts a new one against
// its current address.
func (o *Orchestrator) replaceProbe(ctx context.Context, s *server.Server, before func(context.Context)) {
	o.probes.Cancel(s.ID)
	task := o.probeTask(s, o.cfg.ProbeAttempts, o.cfg.ProbeDelay, before)
	for range replaceProbeAttempts {
		done, started := o.probes.Run(s.ID, task)
		if started {
			return
		}
		o.probes.Cancel(s.ID)
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}

	o.logger.WithContext(ctx).Warn("could not start readiness probe", slog.String("server_id", s.ID))
	if before != nil {
		before(context.WithoutCancel(ctx))
	}
}

// probeTask probes the current address of s and records the outcome. A
// cancelled task records nothing; a panic marks the server as errored.
func (o *Orchestrator) probeTask(s *server.Server, attempts int, delay time.Duration, before func(context.Context)) health.ProbeFunc {
	serverID, address, launchedIn := s.ID, s.IP, s.Status
	return func(ctx context.Context) (ready bool) {
		ctx = logger.WithOperation(logger.WithServerID(ctx, serverID), "ReadinessProbe")

		defer func() {
			if rec := recover(); rec != nil {
				o.logger.ErrorCtx(ctx, "readiness probe task panicked", fmt.Errorf("panic: %v", rec))
				o.markError(context.WithoutCancel(ctx), serverID)
				ready = false
			}
		}()

		if before != nil {
			before(ctx)
		}

		ready = o.prober.Probe(ctx, address, attempts, delay)
		if ctx.Err() != nil {
			return false
		}
		o.applyProbeResult(context.WithoutCancel(ctx), serverID, address, launchedIn, ready)
		return ready
	}
}

// applyProbeResult records ready or service_unavailable. The result only
// counts while the server still has the probed address and the status the
// probe was started in; a direct check or a rotation makes it stale.
func (o *Orchestrator) applyProbeResult(ctx context.Context, serverID, address string, launchedIn server.Status, ready bool) {
	target := server.StatusServiceUnavailable
	if ready {
		target = server.StatusReady
	}

	s, err := o.servers.Get(ctx, serverID)
	if err != nil {
		if !errors.Is(err, server.ErrServerNotFound) {
			o.logger.ErrorCtx(ctx, "failed to load server for probe result", err)
		}
		return
	}
	if s.IP != address || s.Status != launchedIn {
		o.logger.WithContext(ctx).Debug("server moved on during probe, discarding result",
			slog.String("probed_ip", address),
			slog.String("status", string(s.Status)),
			slog.String("result", string(target)))
		return
	}
	if !s.Status.CanTransitionTo(target) {
		return
	}

	if _, err := o.servers.UpdateStatus(ctx, serverID, s.Version, target); err != nil {
		if errors.Is(err, server.ErrConcurrentModification) || errors.Is(err, server.ErrServerNotFound) {
			o.logger.WithContext(ctx).Debug("server changed during probe, discarding result",
				slog.String("result", string(target)))
			return
		}
		o.logger.ErrorCtx(ctx, "failed to record probe result", err, slog.String("result", string(target)))
		return
	}

	prev := s.Status
	s.Status = target
	o.events.StatusChanged(ctx, s, prev, target, "readiness probe")
	o.logger.WithContext(ctx).Info("readiness probe finished",
		slog.String("status", string(target)),
		slog.String("ip", s.IP))
}

func (o *Orchestrator) markError(ctx context.Context, serverID string) {
	if err := o.servers.SetStatus(ctx, serverID, server.StatusError); err != nil &&
		!errors.Is(err, server.ErrServerNotFound) {
		o.logger.ErrorCtx(ctx, "failed to mark server as errored", err)
	}
}
