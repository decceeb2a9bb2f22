package server

import (
	"context"
	"time"
)

// Repository defines the persistence interface for servers
type Repository interface {
	Create(ctx context.Context, s *Server) error
	Get(ctx context.Context, id string) (*Server, error)
	ListByUser(ctx context.Context, userID string) ([]*Server, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Server, error)
	// ListStaleTransitioning returns starting/rotating_ip servers untouched since cutoff.
	ListStaleTransitioning(ctx context.Context, cutoff time.Time) ([]*Server, error)
	CountActiveUsersByRegion(ctx context.Context, now time.Time) (map[string]int, error)

	// UpdateStatus is a compare-and-set on version. It returns the new version
	// or ErrConcurrentModification.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status Status) (int64, error)
	// SetStatus writes status unconditionally. Used by probe results.
	SetStatus(ctx context.Context, id string, status Status) error
	UpdateIP(ctx context.Context, id string, expectedVersion int64, ip string) (int64, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
