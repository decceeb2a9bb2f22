package lease

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mailer:lease:"

// releaseLua deletes the key only while it still holds our token
const releaseLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseScript = redis.NewScript(releaseLua)

// NewRedisClient connects and pings the configured Redis
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisLocker shares leases across replicas using SET NX PX
type RedisLocker struct {
	client   redis.Cmdable
	logger   *logger.Logger
	newToken func() string
}

// NewRedisLocker creates a locker over client
func NewRedisLocker(client redis.Cmdable, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.Discard()
	}
	return &RedisLocker{
		client:   client,
		logger:   log.WithComponent("lease.redis"),
		newToken: uuid.NewString,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := r.newToken()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, effectiveTTL(ttl)).Result()
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternal, "failed to acquire lease", true, err).
			WithMetadata("lease_key", key)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &redisLease{locker: r, key: key, token: token}, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
	once   sync.Once
	err    error
}

func (l *redisLease) Key() string { return l.key }

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		n, err := releaseScript.Eval(ctx, l.locker.client, []string{keyPrefix + l.key}, l.token).Int64()
		switch {
		case err != nil:
			l.err = apperrors.NewSystemError(apperrors.ErrCodeInternal, "failed to release lease", true, err)
		case n == 0:
			l.locker.logger.WithContext(ctx).Warn("lease expired before release", slog.String("lease_key", l.key))
			l.err = ErrLeaseLost
		}
	})
	return l.err
}
