package db

import (
	"context"
	"time"
)

const serverColumns = `id, user_id, provider_instance_id, ip_address, region, zone, class, status, created_at, expires_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanServer(row rowScanner) (Server, error) {
	var i Server
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProviderInstanceID,
		&i.IpAddress,
		&i.Region,
		&i.Zone,
		&i.Class,
		&i.Status,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.UpdatedAt,
		&i.Version,
	)
	return i, err
}

const createServer = `-- name: CreateServer :one
INSERT INTO servers (
    id, user_id, provider_instance_id, ip_address, region, zone, class, status, created_at, expires_at, updated_at, version
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1
)
RETURNING ` + serverColumns

type CreateServerParams struct {
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
}

func (q *Queries) CreateServer(ctx context.Context, arg CreateServerParams) (Server, error) {
	row := q.db.QueryRowContext(ctx, createServer,
		arg.ID,
		arg.UserID,
		arg.ProviderInstanceID,
		arg.IpAddress,
		arg.Region,
		arg.Zone,
		arg.Class,
		arg.Status,
		arg.CreatedAt,
		arg.ExpiresAt,
		arg.UpdatedAt,
	)
	return scanServer(row)
}

const getServer = `-- name: GetServer :one
SELECT ` + serverColumns + ` FROM servers
WHERE id = ?`

func (q *Queries) GetServer(ctx context.Context, id string) (Server, error) {
	row := q.db.QueryRowContext(ctx, getServer, id)
	return scanServer(row)
}

const listServersByUser = `-- name: ListServersByUser :many
SELECT ` + serverColumns + ` FROM servers
WHERE user_id = ?
ORDER BY created_at ASC`

func (q *Queries) ListServersByUser(ctx context.Context, userID string) ([]Server, error) {
	return q.listServers(ctx, listServersByUser, userID)
}

const listServers = `-- name: ListServers :many
SELECT ` + serverColumns + ` FROM servers
ORDER BY created_at ASC`

func (q *Queries) ListServers(ctx context.Context) ([]Server, error) {
	return q.listServers(ctx, listServers)
}

const listExpiredServers = `-- name: ListExpiredServers :many
SELECT ` + serverColumns + ` FROM servers
WHERE expires_at < ?
ORDER BY expires_at ASC`

func (q *Queries) ListExpiredServers(ctx context.Context, now time.Time) ([]Server, error) {
	return q.listServers(ctx, listExpiredServers, now)
}

const listStaleTransitioningServers = `-- name: ListStaleTransitioningServers :many
SELECT ` + serverColumns + ` FROM servers
WHERE status IN ('starting', 'rotating_ip') AND updated_at < ?
ORDER BY updated_at ASC`

func (q *Queries) ListStaleTransitioningServers(ctx context.Context, cutoff time.Time) ([]Server, error) {
	return q.listServers(ctx, listStaleTransitioningServers, cutoff)
}

func (q *Queries) listServers(ctx context.Context, query string, args ...interface{}) ([]Server, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Server{}
	for rows.Next() {
		i, err := scanServer(rows)
		if err != nil {
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

const countActiveUsersByRegion = `-- name: CountActiveUsersByRegion :many
SELECT region, COUNT(DISTINCT user_id) AS users FROM servers
WHERE expires_at >= ? AND status NOT IN ('stopped', 'terminated')
GROUP BY region`

func (q *Queries) CountActiveUsersByRegion(ctx context.Context, now time.Time) ([]RegionUserCount, error) {
	rows, err := q.db.QueryContext(ctx, countActiveUsersByRegion, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RegionUserCount{}
	for rows.Next() {
		var i RegionUserCount
		if err := rows.Scan(&i.Region, &i.Users); err != nil {
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

const updateServerStatus = `-- name: UpdateServerStatus :execrows
UPDATE servers
SET status = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?`

type UpdateServerStatusParams struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
}

func (q *Queries) UpdateServerStatus(ctx context.Context, arg UpdateServerStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateServerStatus,
		arg.Status,
		arg.UpdatedAt,
		arg.ID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setServerStatus = `-- name: SetServerStatus :execrows
UPDATE servers
SET status = ?, updated_at = ?, version = version + 1
WHERE id = ?`

type SetServerStatusParams struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

func (q *Queries) SetServerStatus(ctx context.Context, arg SetServerStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setServerStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateServerIP = `-- name: UpdateServerIP :execrows
UPDATE servers
SET ip_address = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?`

type UpdateServerIPParams struct {
	IpAddress string    `json:"ip_address"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
}

func (q *Queries) UpdateServerIP(ctx context.Context, arg UpdateServerIPParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateServerIP,
		arg.IpAddress,
		arg.UpdatedAt,
		arg.ID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const touchServer = `-- name: TouchServer :execrows
UPDATE servers
SET updated_at = ?, version = version + 1
WHERE id = ?`

func (q *Queries) TouchServer(ctx context.Context, updatedAt time.Time, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, touchServer, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteServer = `-- name: DeleteServer :execrows
DELETE FROM servers
WHERE id = ?`

func (q *Queries) DeleteServer(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteServer, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countServers = `-- name: CountServers :one
SELECT COUNT(*) FROM servers`

func (q *Queries) CountServers(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countServers)
	var count int64
	err := row.Scan(&count)
	return count, err
}
