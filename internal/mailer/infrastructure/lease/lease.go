package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// DefaultTTL bounds how long a crashed holder can block a key
const DefaultTTL = 5 * time.Minute

var (
	// ErrLeaseHeld is returned by Acquire when another holder owns the key.
	ErrLeaseHeld = apperrors.NewServerError(apperrors.ErrCodeLeaseHeld,
		"operation already in progress", true, nil)

	// ErrLeaseLost is returned by Release when the lease expired and was taken over.
	ErrLeaseLost = apperrors.NewServerError(apperrors.ErrCodeLeaseHeld,
		"lease expired before release", false, nil)
)

// Lease is a held key. Release is safe to call more than once.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker hands out non-blocking, TTL-bounded leases
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// ServerKey is the lease key guarding mutations of one server
func ServerKey(serverID string) string { return "server:" + serverID }

// UserKey is the lease key serializing creates for one user
func UserKey(userID string) string { return "user:" + userID }

// NewLocker builds the backend selected by cfg. The returned close func
// releases backend connections.
func NewLocker(ctx context.Context, cfg config.LeaseConfig, redisCfg config.RedisConfig, log *logger.Logger) (Locker, func() error, error) {
	switch cfg.Backend {
	case "", config.LeaseBackendMemory:
		return NewMemoryLocker(), func() error { return nil }, nil

	case config.LeaseBackendRedis:
		client, err := NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
				"failed to connect to redis for leases", true, err)
		}
		return NewRedisLocker(client, log), client.Close, nil

	default:
		return nil, nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("unknown lease backend %q", cfg.Backend), false, nil)
	}
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
