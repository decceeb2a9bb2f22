package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/google/uuid"
	gookitEvent "github.com/gookit/event"
)

const (
	payloadKey = "payload"
	contextKey = "ctx"
)

// subscription is a pointer so gookit can tell listeners apart on removal
type subscription struct {
	bus     *gookitEventBus
	handler EventHandler
}

func (s *subscription) Handle(e gookitEvent.Event) error {
	ev, ok := e.Get(payloadKey).(Event)
	if !ok {
		return fmt.Errorf("invalid event payload: %T", e.Get(payloadKey))
	}
	ctx, _ := e.Get(contextKey).(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	return s.bus.invoke(ctx, s.handler, ev)
}

// gookitEventBus implements EventBus using gookit/event as the underlying implementation
type gookitEventBus struct {
	manager     *gookitEvent.Manager
	config      EventBusConfig
	logger      *logger.Logger
	subscribers map[string][]*subscription
	mu          sync.RWMutex
	lastError   string
	closed      bool
}

// NewGookitEventBus creates a new event bus using gookit/event
func NewGookitEventBus(config EventBusConfig, log *logger.Logger) EventBus {
	if config.Name == "" {
		config.Name = DefaultEventBusConfig().Name
	}
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("events.bus")

	log.DebugContext(context.Background(),
		"creating event bus",
		slog.String("name", config.Name),
		slog.String("mode", config.Mode),
		slog.Duration("timeout", config.Timeout))

	return &gookitEventBus{
		manager:     gookitEvent.NewManager(config.Name),
		config:      config,
		logger:      log,
		subscribers: make(map[string][]*subscription),
	}
}

// Publish delivers event synchronously to every subscriber of its type
func (b *gookitEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	b.logger.WithContext(ctx).Debug("publishing event",
		slog.String("type", event.Type()),
		slog.String("id", event.ID()),
		slog.Time("timestamp", event.Timestamp()))

	err, _ := b.manager.Fire(event.Type(), gookitEvent.M{payloadKey: event, contextKey: ctx})
	if err != nil {
		b.mu.Lock()
		b.lastError = err.Error()
		b.mu.Unlock()

		b.logger.ErrorCtx(ctx, "failed to publish event", err,
			slog.String("type", event.Type()),
			slog.String("id", event.ID()))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe registers a handler for events of a specific type
func (b *gookitEventBus) Subscribe(eventType string, handler EventHandler) (UnsubscribeFunc, error) {
	return b.SubscribeWithPriority(eventType, handler, PriorityNormal)
}

// SubscribeWithPriority registers a handler with a specific priority
func (b *gookitEventBus) SubscribeWithPriority(eventType string, handler EventHandler, priority Priority) (UnsubscribeFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	gookitPriority := gookitEvent.Normal
	switch priority {
	case PriorityHigh:
		gookitPriority = gookitEvent.High
	case PriorityLow:
		gookitPriority = gookitEvent.Low
	}

	sub := &subscription{bus: b, handler: handler}
	b.manager.On(eventType, sub, gookitPriority)
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)

	b.logger.Debug("subscribed to event type",
		slog.String("type", eventType),
		slog.Int("priority", int(priority)))

	return func() error { return b.unsubscribe(eventType, sub) }, nil
}

func (b *gookitEventBus) invoke(ctx context.Context, handler EventHandler, ev Event) (err error) {
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("event handler panicked on %s: %v", ev.Type(), rec)
		}
	}()
	return handler(ctx, ev)
}

func (b *gookitEventBus) unsubscribe(eventType string, sub *subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.subscribers[eventType]
	if !exists {
		return fmt.Errorf("no handlers found for event type: %s", eventType)
	}

	for i, s := range subs {
		if s == sub {
			b.manager.RemoveListener(eventType, s)
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	if len(b.subscribers[eventType]) == 0 {
		delete(b.subscribers, eventType)
	}

	b.logger.Debug("unsubscribed from event type", slog.String("type", eventType))
	return nil
}

// Close gracefully shuts down the event bus
func (b *gookitEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.logger.Debug("closing event bus")
	b.subscribers = make(map[string][]*subscription)
	b.manager.Clear()
	b.closed = true
	return nil
}

// Health returns the health status of the event bus
func (b *gookitEventBus) Health() Health {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := "healthy"
	message := "Event bus is operating normally"

	if b.closed {
		status = "unhealthy"
		message = "Event bus is closed"
	} else if b.lastError != "" {
		status = "degraded"
		message = "Event bus has recent errors"
	}

	totalSubscribers := 0
	for _, subs := range b.subscribers {
		totalSubscribers += len(subs)
	}

	return Health{
		Status:      status,
		Message:     message,
		Subscribers: totalSubscribers,
		LastError:   b.lastError,
		Metadata: map[string]interface{}{
			"event_types": len(b.subscribers),
			"mode":        b.config.Mode,
			"timeout":     b.config.Timeout.String(),
		},
	}
}

// BaseEvent provides a common implementation of the Event interface
type BaseEvent struct {
	id        string
	eventType string
	timestamp time.Time
	metadata  map[string]interface{}
}

// NewBaseEvent creates a new base event
func NewBaseEvent(eventType string, metadata map[string]interface{}) *BaseEvent {
	return &BaseEvent{
		id:        uuid.New().String(),
		eventType: eventType,
		timestamp: time.Now().UTC(),
		metadata:  metadata,
	}
}

func (e *BaseEvent) Type() string         { return e.eventType }
func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }
func (e *BaseEvent) ID() string           { return e.id }

// Metadata returns the event metadata
func (e *BaseEvent) Metadata() map[string]interface{} {
	if e.metadata == nil {
		return make(map[string]interface{})
	}
	return e.metadata
}

// WithMetadata adds metadata to the event
func (e *BaseEvent) WithMetadata(key string, value interface{}) *BaseEvent {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}
