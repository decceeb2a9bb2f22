package api

import "time"

// LoginResponse carries the bearer token for subsequent requests
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
}

// PointsResponse reports the caller's balance
type PointsResponse struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// ServerInfo is a server as seen by its owner
type ServerInfo struct {
	ID            string    `json:"id"`
	IP            string    `json:"ip"`
	Region        string    `json:"region"`
	Zone          string    `json:"zone"`
	ServerClass   string    `json:"server_class"`
	Status        string    `json:"status"`
	ProviderState string    `json:"provider_state,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ServersListResponse lists the caller's live servers
type ServersListResponse struct {
	Servers []ServerInfo `json:"servers"`
	Count   int          `json:"count"`
}

// TerminateResponse confirms a termination
type TerminateResponse struct {
	Message  string `json:"message"`
	ServerID string `json:"server_id"`
}

// UsedIPInfo is one address from the used-address ledger
type UsedIPInfo struct {
	Address    string    `json:"address"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	AssignedAt time.Time `json:"assigned_at"`
	UsageCount int64     `json:"usage_count"`
}

// UsedIPsResponse lists every address ever assigned
type UsedIPsResponse struct {
	Count int          `json:"count"`
	IPs   []UsedIPInfo `json:"ips"`
}

// UserInfo describes a provisioned account
type UserInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Points    int64     `json:"points"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string               `json:"status"`
	Version  string               `json:"version,omitempty"`
	Database string               `json:"database"`
	Provider *ProviderCircuitInfo `json:"provider,omitempty"`
}

// ProviderCircuitInfo describes the provider circuit breaker.
type ProviderCircuitInfo struct {
	Name            string                 `json:"name"`
	State           string                 `json:"state"`
	HealthIndicator string                 `json:"health_indicator"`
	Metrics         map[string]interface{} `json:"metrics,omitempty"`
}
