package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// GetActive returns the user's live servers. Expired servers and servers whose
// instance is gone are torn down and left out. Servers whose provider state
// cannot be read are still returned, marked unknown.
func (o *Orchestrator) GetActive(ctx context.Context, userID string) ([]server.View, error) {
	ctx = logger.WithUserID(ctx, userID)

	servers, err := o.servers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]server.View, 0, len(servers))
	now := o.now()
	for _, s := range servers {
		if s.IsExpired(now) {
			o.reap(ctx, s, "expired")
			continue
		}

		state, err := o.adapter.GetInstanceState(ctx, s.ProviderInstanceID, s.Zone)
		if err != nil || state == server.ProviderUnknown {
			if err != nil {
				o.logger.WarnErr(ctx, "provider state unavailable", err, slog.String("server_id", s.ID))
			}
			v := server.NewView(s, server.ProviderUnknown)
			v.Status = server.StatusUnknown
			views = append(views, v)
			continue
		}

		if state.IsGone() {
			o.reap(ctx, s, "instance "+string(state))
			continue
		}

		views = append(views, server.NewView(s, state))
	}
	return views, nil
}

// CheckStatus reports the server's status, reconciling it with the provider.
// Inside the quiescence window the stored status is returned. Past it, a
// transitioning server is checked once directly; if that fails a recheck probe
// runs (or the running one is reused) and the view says rechecking.
func (o *Orchestrator) CheckStatus(ctx context.Context, serverID, userID string) (server.View, error) {
	ctx = logger.WithServerID(logger.WithUserID(ctx, userID), serverID)

	s, err := o.ownedServer(ctx, serverID, userID)
	if err != nil {
		return server.View{}, err
	}

	state, err := o.adapter.GetInstanceState(ctx, s.ProviderInstanceID, s.Zone)
	if err != nil {
		o.logger.WarnErr(ctx, "provider state unavailable", err)
		v := server.NewView(s, server.ProviderUnknown)
		v.Status = server.StatusUnknown
		return v, nil
	}

	// Ready is only trusted while the instance runs
	if s.Status == server.StatusReady && state != server.ProviderRunning && state != server.ProviderUnknown {
		target := server.StatusStopped
		if state.IsPendingLike() {
			target = server.StatusStarting
		}
		return o.transition(ctx, s, state, target, "provider state "+string(state))
	}

	if !s.Status.IsTransitioning() {
		return server.NewView(s, state), nil
	}

	if !s.QuietFor(o.now(), o.cfg.QuiescenceWindow) {
		return server.NewView(s, state), nil
	}

	if o.prober.Check(ctx, s.IP, o.cfg.DirectTimeout) {
		return o.transition(ctx, s, state, server.StatusReady, "direct check")
	}

	if err := o.servers.Touch(ctx, s.ID); err != nil {
		o.logger.WarnErr(ctx, "failed to touch server", err)
	}
	// Attaches to a probe that is already running instead of starting another
	o.startProbe(s, o.cfg.RecheckAttempts, o.cfg.RecheckDelay, nil)
	return rechecking(s, state), nil
}

// transition persists target with a version check. If the record moved on in
// the meantime the fresh record is reported instead.
func (o *Orchestrator) transition(ctx context.Context, s *server.Server, state server.ProviderState,
	target server.Status, reason string) (server.View, error) {
	version, err := o.servers.UpdateStatus(ctx, s.ID, s.Version, target)
	if err != nil {
		if !errors.Is(err, server.ErrConcurrentModification) {
			return server.View{}, err
		}
		fresh, err := o.servers.Get(ctx, s.ID)
		if err != nil {
			return server.View{}, err
		}
		return server.NewView(fresh, state), nil
	}

	prev := s.Status
	s.Status = target
	s.Version = version
	s.UpdatedAt = o.now()
	o.events.StatusChanged(ctx, s, prev, target, reason)
	o.logger.WithContext(ctx).Info("server status changed",
		slog.String("from", string(prev)),
		slog.String("to", string(target)),
		slog.String("reason", reason))
	return server.NewView(s, state), nil
}

func rechecking(s *server.Server, state server.ProviderState) server.View {
	v := server.NewView(s, state)
	v.Status = server.StatusRechecking
	return v
}
