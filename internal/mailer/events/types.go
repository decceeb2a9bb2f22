package events

// Lifecycle event types
const (
	EventServerCreated       = "server.created"
	EventServerStatusChanged = "server.status_changed"
	EventServerIPRotated     = "server.ip_rotated"
	EventServerTerminated    = "server.terminated"
	EventServerExpired       = "server.expired"
)

// AllEventTypes lists every lifecycle event type
var AllEventTypes = []string{
	EventServerCreated,
	EventServerStatusChanged,
	EventServerIPRotated,
	EventServerTerminated,
	EventServerExpired,
}
