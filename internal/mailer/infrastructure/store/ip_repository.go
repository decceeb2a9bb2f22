package store

import (
	"context"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/db"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// ipRepository implements ipledger.Repository on the used_ips table
type ipRepository struct {
	store  db.Store
	now    Clock
	logger *logger.Logger
}

// NewIPRepository creates a used-address repository
func NewIPRepository(store db.Store, clock Clock, log *logger.Logger) ipledger.Repository {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ipRepository{
		store:  store,
		now:    clock,
		logger: log.WithComponent("store.used_ips"),
	}
}

func (r *ipRepository) IsUsed(ctx context.Context, address string) (bool, error) {
	defer r.observe(ctx, "select", time.Now())

	used, err := r.store.UsedIPExists(ctx, address)
	if err != nil {
		return false, dbError("failed to check used address", err)
	}
	return used, nil
}

func (r *ipRepository) MarkUsed(ctx context.Context, address, userID, instanceID string) (*ipledger.UsedIP, error) {
	defer r.observe(ctx, "upsert", time.Now())

	row, err := r.store.UpsertUsedIP(ctx, db.UpsertUsedIPParams{
		Address:    address,
		UserID:     userID,
		InstanceID: instanceID,
		AssignedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, dbError("failed to record used address", err)
	}
	return toDomainUsedIP(&row), nil
}

func (r *ipRepository) List(ctx context.Context) ([]*ipledger.UsedIP, error) {
	defer r.observe(ctx, "select", time.Now())

	rows, err := r.store.ListUsedIPs(ctx)
	if err != nil {
		return nil, dbError("failed to list used addresses", err)
	}

	out := make([]*ipledger.UsedIP, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainUsedIP(&rows[i]))
	}
	return out, nil
}

func (r *ipRepository) observe(ctx context.Context, op string, start time.Time) {
	r.logger.DBQuery(ctx, op, "used_ips", time.Since(start))
}

func toDomainUsedIP(row *db.UsedIp) *ipledger.UsedIP {
	return &ipledger.UsedIP{
		Address:    row.Address,
		UserID:     row.UserID,
		InstanceID: row.InstanceID,
		AssignedAt: row.AssignedAt.UTC(),
		UsageCount: row.UsageCount,
	}
}
