package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/db"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// Clock returns the current time. Repositories stamp updated_at with it.
type Clock func() time.Time

// serverRepository implements server.Repository using db.Store
type serverRepository struct {
	store  db.Store
	now    Clock
	logger *logger.Logger
}

// NewServerRepository creates a new server repository
func NewServerRepository(store db.Store, clock Clock, log *logger.Logger) server.Repository {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &serverRepository{
		store:  store,
		now:    clock,
		logger: log.WithComponent("store.servers"),
	}
}

// Create inserts a new server record
func (r *serverRepository) Create(ctx context.Context, s *server.Server) error {
	defer r.observe(ctx, "insert", time.Now())

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}

	row, err := r.store.CreateServer(ctx, db.CreateServerParams{
		ID:                 s.ID,
		UserID:             s.UserID,
		ProviderInstanceID: s.ProviderInstanceID,
		IpAddress:          s.IP,
		Region:             s.Region,
		Zone:               s.Zone,
		Class:              string(s.Class),
		Status:             string(s.Status),
		CreatedAt:          s.CreatedAt.UTC(),
		ExpiresAt:          s.ExpiresAt.UTC(),
		UpdatedAt:          s.UpdatedAt.UTC(),
	})
	if err != nil {
		return dbError("failed to create server", err)
	}

	s.Version = row.Version
	return nil
}

// Get retrieves a server by ID
func (r *serverRepository) Get(ctx context.Context, id string) (*server.Server, error) {
	defer r.observe(ctx, "select", time.Now())

	row, err := r.store.GetServer(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, server.ErrServerNotFound
		}
		return nil, dbError("failed to get server", err)
	}
	return toDomainServer(&row), nil
}

// ListByUser returns every server record owned by userID, oldest first
func (r *serverRepository) ListByUser(ctx context.Context, userID string) ([]*server.Server, error) {
	defer r.observe(ctx, "select", time.Now())

	rows, err := r.store.ListServersByUser(ctx, userID)
	if err != nil {
		return nil, dbError("failed to list servers", err)
	}
	return toDomainServers(rows), nil
}

func (r *serverRepository) ListExpired(ctx context.Context, now time.Time) ([]*server.Server, error) {
	defer r.observe(ctx, "select", time.Now())

	rows, err := r.store.ListExpiredServers(ctx, now.UTC())
	if err != nil {
		return nil, dbError("failed to list expired servers", err)
	}
	return toDomainServers(rows), nil
}

func (r *serverRepository) ListStaleTransitioning(ctx context.Context, cutoff time.Time) ([]*server.Server, error) {
	defer r.observe(ctx, "select", time.Now())

	rows, err := r.store.ListStaleTransitioningServers(ctx, cutoff.UTC())
	if err != nil {
		return nil, dbError("failed to list stale servers", err)
	}
	return toDomainServers(rows), nil
}

// CountActiveUsersByRegion counts distinct users with a live server, per region
func (r *serverRepository) CountActiveUsersByRegion(ctx context.Context, now time.Time) (map[string]int, error) {
	defer r.observe(ctx, "aggregate", time.Now())

	rows, err := r.store.CountActiveUsersByRegion(ctx, now.UTC())
	if err != nil {
		return nil, dbError("failed to count users per region", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Region] = int(row.Users)
	}
	return counts, nil
}

// UpdateStatus updates status with optimistic locking
func (r *serverRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status server.Status) (int64, error) {
	defer r.observe(ctx, "update", time.Now())

	if !status.IsValid() {
		return 0, server.ErrInvalidStatusTransition
	}

	n, err := r.store.UpdateServerStatus(ctx, db.UpdateServerStatusParams{
		Status:    string(status),
		UpdatedAt: r.now().UTC(),
		ID:        id,
		Version:   expectedVersion,
	})
	if err != nil {
		return 0, dbError("failed to update server status", err)
	}
	if n == 0 {
		return 0, r.missingOrConflict(ctx, id)
	}
	return expectedVersion + 1, nil
}

// SetStatus writes status without a version check
func (r *serverRepository) SetStatus(ctx context.Context, id string, status server.Status) error {
	defer r.observe(ctx, "update", time.Now())

	if !status.IsValid() {
		return server.ErrInvalidStatusTransition
	}

	n, err := r.store.SetServerStatus(ctx, db.SetServerStatusParams{
		Status:    string(status),
		UpdatedAt: r.now().UTC(),
		ID:        id,
	})
	if err != nil {
		return dbError("failed to set server status", err)
	}
	if n == 0 {
		return server.ErrServerNotFound
	}
	return nil
}

// UpdateIP records a new address with optimistic locking
func (r *serverRepository) UpdateIP(ctx context.Context, id string, expectedVersion int64, ip string) (int64, error) {
	defer r.observe(ctx, "update", time.Now())

	n, err := r.store.UpdateServerIP(ctx, db.UpdateServerIPParams{
		IpAddress: ip,
		UpdatedAt: r.now().UTC(),
		ID:        id,
		Version:   expectedVersion,
	})
	if err != nil {
		return 0, dbError("failed to update server ip", err)
	}
	if n == 0 {
		return 0, r.missingOrConflict(ctx, id)
	}
	return expectedVersion + 1, nil
}

// Touch stamps updated_at without changing status
func (r *serverRepository) Touch(ctx context.Context, id string) error {
	defer r.observe(ctx, "update", time.Now())

	n, err := r.store.TouchServer(ctx, r.now().UTC(), id)
	if err != nil {
		return dbError("failed to touch server", err)
	}
	if n == 0 {
		return server.ErrServerNotFound
	}
	return nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (r *serverRepository) Delete(ctx context.Context, id string) error {
	defer r.observe(ctx, "delete", time.Now())

	if _, err := r.store.DeleteServer(ctx, id); err != nil {
		return dbError("failed to delete server", err)
	}
	return nil
}

func (r *serverRepository) missingOrConflict(ctx context.Context, id string) error {
	if _, err := r.store.GetServer(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return server.ErrServerNotFound
	}
	return server.ErrConcurrentModification
}

func (r *serverRepository) observe(ctx context.Context, op string, start time.Time) {
	r.logger.DBQuery(ctx, op, "servers", time.Since(start))
}

func toDomainServer(row *db.Server) *server.Server {
	return &server.Server{
		ID:                 row.ID,
		UserID:             row.UserID,
		ProviderInstanceID: row.ProviderInstanceID,
		IP:                 row.IpAddress,
		Region:             row.Region,
		Zone:               row.Zone,
		Class:              server.Class(row.Class),
		Status:             server.Status(row.Status),
		CreatedAt:          row.CreatedAt.UTC(),
		ExpiresAt:          row.ExpiresAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		Version:            row.Version,
	}
}

func toDomainServers(rows []db.Server) []*server.Server {
	servers := make([]*server.Server, 0, len(rows))
	for i := range rows {
		servers = append(servers, toDomainServer(&rows[i]))
	}
	return servers
}

func dbError(message string, err error) error {
	return apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, message, true, err)
}
