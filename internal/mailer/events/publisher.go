// Package events publishes server lifecycle events on the shared bus.
package events

import (
	"context"
	"log/slog"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/burhanmukhtar/Molly-Pro/pkg/events"
)

// Publisher emits lifecycle events. Publishing is best effort: failures are
// logged and never fail the lifecycle operation. A nil Publisher is a no-op.
type Publisher struct {
	bus    events.EventBus
	logger *logger.Logger
}

// NewPublisher creates a publisher over bus
func NewPublisher(bus events.EventBus, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{bus: bus, logger: log.WithComponent("events.publisher")}
}

// Bus returns the underlying event bus
func (p *Publisher) Bus() events.EventBus { return p.bus }

func (p *Publisher) ServerCreated(ctx context.Context, s *server.Server) {
	p.publish(ctx, EventServerCreated, serverMetadata(s))
}

func (p *Publisher) StatusChanged(ctx context.Context, s *server.Server, previous, current server.Status, reason string) {
	md := serverMetadata(s)
	md["previous_status"] = string(previous)
	md["new_status"] = string(current)
	md["reason"] = reason
	p.publish(ctx, EventServerStatusChanged, md)
}

func (p *Publisher) IPRotated(ctx context.Context, s *server.Server, oldIP, newIP string) {
	md := serverMetadata(s)
	md["old_ip"] = oldIP
	md["new_ip"] = newIP
	p.publish(ctx, EventServerIPRotated, md)
}

func (p *Publisher) Terminated(ctx context.Context, s *server.Server) {
	p.publish(ctx, EventServerTerminated, serverMetadata(s))
}

func (p *Publisher) Expired(ctx context.Context, s *server.Server) {
	p.publish(ctx, EventServerExpired, serverMetadata(s))
}

// Subscribe registers handler for one event type
func (p *Publisher) Subscribe(eventType string, handler events.EventHandler) (events.UnsubscribeFunc, error) {
	return p.bus.Subscribe(eventType, handler)
}

// SubscribeAudit logs every lifecycle event at info level
func (p *Publisher) SubscribeAudit(log *logger.Logger) error {
	audit := log.WithComponent("audit")
	for _, eventType := range AllEventTypes {
		_, err := p.bus.SubscribeWithPriority(eventType, func(ctx context.Context, e events.Event) error {
			args := []any{slog.String("event_type", e.Type()), slog.String("event_id", e.ID())}
			for k, v := range e.Metadata() {
				args = append(args, slog.Any(k, v))
			}
			audit.WithContext(ctx).Info("lifecycle event", args...)
			return nil
		}, events.PriorityLow)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType string, metadata map[string]interface{}) {
	if p == nil || p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, events.NewBaseEvent(eventType, metadata)); err != nil {
		p.logger.WarnErr(ctx, "failed to publish lifecycle event", err, slog.String("event_type", eventType))
	}
}

func serverMetadata(s *server.Server) map[string]interface{} {
	return map[string]interface{}{
		"server_id":  s.ID,
		"user_id":    s.UserID,
		"class":      string(s.Class),
		"status":     string(s.Status),
		"ip_address": s.IP,
		"region":     s.Region,
		"zone":       s.Zone,
	}
}
