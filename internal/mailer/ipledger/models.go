package ipledger

import "time"

// UsedIP is a public address that has been handed to a server at least once.
// Entries are never deleted; a recorded address is never drawn again.
type UsedIP struct {
	Address    string    `json:"address"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	AssignedAt time.Time `json:"assigned_at"`
	UsageCount int64     `json:"usage_count"`
}
