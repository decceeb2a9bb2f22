package db

import (
	"context"
	"time"
)

type Querier interface {
	// accounts
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByUsername(ctx context.Context, username string) (Account, error)
	DebitAccount(ctx context.Context, arg DebitAccountParams) (int64, error)

	// servers
	CreateServer(ctx context.Context, arg CreateServerParams) (Server, error)
	GetServer(ctx context.Context, id string) (Server, error)
	ListServersByUser(ctx context.Context, userID string) ([]Server, error)
	ListServers(ctx context.Context) ([]Server, error)
	ListExpiredServers(ctx context.Context, now time.Time) ([]Server, error)
	ListStaleTransitioningServers(ctx context.Context, cutoff time.Time) ([]Server, error)
	CountActiveUsersByRegion(ctx context.Context, now time.Time) ([]RegionUserCount, error)
	UpdateServerStatus(ctx context.Context, arg UpdateServerStatusParams) (int64, error)
	SetServerStatus(ctx context.Context, arg SetServerStatusParams) (int64, error)
	UpdateServerIP(ctx context.Context, arg UpdateServerIPParams) (int64, error)
	TouchServer(ctx context.Context, updatedAt time.Time, id string) (int64, error)
	DeleteServer(ctx context.Context, id string) (int64, error)
	CountServers(ctx context.Context) (int64, error)

	// used ips
	UpsertUsedIP(ctx context.Context, arg UpsertUsedIPParams) (UsedIp, error)
	UsedIPExists(ctx context.Context, address string) (bool, error)
	GetUsedIP(ctx context.Context, address string) (UsedIp, error)
	ListUsedIPs(ctx context.Context) ([]UsedIp, error)
}

var _ Querier = (*Queries)(nil)
