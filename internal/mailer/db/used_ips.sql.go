package db

import (
	"context"
	"time"
)

const upsertUsedIP = `-- name: UpsertUsedIP :one
INSERT INTO used_ips (address, user_id, instance_id, assigned_at, usage_count)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT(address) DO UPDATE SET
    user_id = excluded.user_id,
    instance_id = excluded.instance_id,
    assigned_at = excluded.assigned_at,
    usage_count = used_ips.usage_count + 1
RETURNING address, user_id, instance_id, assigned_at, usage_count`

type UpsertUsedIPParams struct {
	Address    string    `json:"address"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (q *Queries) UpsertUsedIP(ctx context.Context, arg UpsertUsedIPParams) (UsedIp, error) {
	row := q.db.QueryRowContext(ctx, upsertUsedIP,
		arg.Address,
		arg.UserID,
		arg.InstanceID,
		arg.AssignedAt,
	)
	var i UsedIp
	err := row.Scan(
		&i.Address,
		&i.UserID,
		&i.InstanceID,
		&i.AssignedAt,
		&i.UsageCount,
	)
	return i, err
}

const usedIPExists = `-- name: UsedIPExists :one
SELECT EXISTS(SELECT 1 FROM used_ips WHERE address = ?)`

func (q *Queries) UsedIPExists(ctx context.Context, address string) (bool, error) {
	row := q.db.QueryRowContext(ctx, usedIPExists, address)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const getUsedIP = `-- name: GetUsedIP :one
SELECT address, user_id, instance_id, assigned_at, usage_count FROM used_ips
WHERE address = ?`

func (q *Queries) GetUsedIP(ctx context.Context, address string) (UsedIp, error) {
	row := q.db.QueryRowContext(ctx, getUsedIP, address)
	var i UsedIp
	err := row.Scan(
		&i.Address,
		&i.UserID,
		&i.InstanceID,
		&i.AssignedAt,
		&i.UsageCount,
	)
	return i, err
}

const listUsedIPs = `-- name: ListUsedIPs :many
SELECT address, user_id, instance_id, assigned_at, usage_count FROM used_ips
ORDER BY assigned_at DESC`

func (q *Queries) ListUsedIPs(ctx context.Context) ([]UsedIp, error) {
	rows, err := q.db.QueryContext(ctx, listUsedIPs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []UsedIp{}
	for rows.Next() {
		var i UsedIp
		if err := rows.Scan(
			&i.Address,
			&i.UserID,
			&i.InstanceID,
			&i.AssignedAt,
			&i.UsageCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
