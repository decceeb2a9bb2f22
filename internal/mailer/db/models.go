package db

import (
	"time"
)

type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Points       int64     `json:"points"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Server struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	ProviderInstanceID string    `json:"provider_instance_id"`
	IpAddress          string    `json:"ip_address"`
	Region             string    `json:"region"`
	Zone               string    `json:"zone"`
	Class              string    `json:"class"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int64     `json:"version"`
}

type UsedIp struct {
	Address    string    `json:"address"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	AssignedAt time.Time `json:"assigned_at"`
	UsageCount int64     `json:"usage_count"`
}

type RegionUserCount struct {
	Region string `json:"region"`
	Users  int64  `json:"users"`
}
