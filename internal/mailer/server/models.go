package server

import (
	"fmt"
	"time"
)

// Class selects the lease length, cost and addressing of a server
type Class string

const (
	ClassEphemeral  Class = "ephemeral"
	ClassPersistent Class = "persistent"
)

// ParseClass validates a class name coming from a request.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassEphemeral, ClassPersistent:
		return Class(s), nil
	default:
		return "", fmt.Errorf("unknown server class %q", s)
	}
}

func (c Class) String() string {
	return string(c)
}

// ClassPolicy holds the per-class settings resolved from configuration.
type ClassPolicy struct {
	Cost        int64
	Duration    time.Duration
	MachineType string
	DiskSizeGB  int64
	DiskType    string
}

// Server is a mailer VM leased to one user
type Server struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	ProviderInstanceID string    `json:"provider_instance_id"`
	IP                 string    `json:"ip"`
	Region             string    `json:"region"`
	Zone               string    `json:"zone"`
	Class              Class     `json:"server_class"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int64     `json:"version"`
}

// IsExpired reports whether the lease ended before now.
func (s *Server) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// IsPersistent returns true for servers with a dedicated floating address
func (s *Server) IsPersistent() bool {
	return s.Class == ClassPersistent
}

// QuietFor reports whether no status change happened within window.
func (s *Server) QuietFor(now time.Time, window time.Duration) bool {
	return now.Sub(s.UpdatedAt) > window
}

// OwnedBy reports whether userID owns the server.
func (s *Server) OwnedBy(userID string) bool {
	return s.UserID == userID
}

// View is a server as reported to callers, with the live provider state and
// a status that may be view-only (rechecking, unknown).
type View struct {
	Server        Server
	Status        Status
	ProviderState ProviderState
}

// NewView builds a view reporting the stored status.
func NewView(s *Server, state ProviderState) View {
	status := s.Status
	if status == "" {
		status = StatusReady
	}
	return View{Server: *s, Status: status, ProviderState: state}
}
