package events

import (
	"context"
	"time"
)

// Event is a message published on the bus
type Event interface {
	ID() string
	Type() string
	Timestamp() time.Time
	Metadata() map[string]interface{}
}

// EventHandler handles a published event. Errors are logged by the bus.
type EventHandler func(ctx context.Context, event Event) error

// UnsubscribeFunc removes a subscription
type UnsubscribeFunc func() error

// Priority orders handlers subscribed to the same event type
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// EventBus is a synchronous in-process publish/subscribe bus
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler EventHandler) (UnsubscribeFunc, error)
	SubscribeWithPriority(eventType string, handler EventHandler, priority Priority) (UnsubscribeFunc, error)
	Close() error
	Health() Health
}

// EventBusConfig configures the bus. Timeout bounds a single handler invocation.
type EventBusConfig struct {
	Name    string        `json:"name"`
	Mode    string        `json:"mode"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultEventBusConfig returns the default bus configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		Name:    "mailer",
		Mode:    "simple",
		Timeout: 30 * time.Second,
	}
}

// Health describes the state of the bus
type Health struct {
	Status      string                 `json:"status"`
	Message     string                 `json:"message"`
	Subscribers int                    `json:"subscribers"`
	LastError   string                 `json:"last_error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
