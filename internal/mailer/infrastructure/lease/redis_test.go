package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker() (*RedisLocker, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, logger.Discard())
	locker.newToken = func() string { return "tok-1" }
	return locker, mock
}

func TestRedisLocker_Acquire(t *testing.T) {
	key := keyPrefix + "server:s1"

	tests := []struct {
		name      string
		mockSetup func(mock redismock.ClientMock)
		wantErr   error
		wantCode  string
	}{
		{
			name: "acquired",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "tok-1", time.Minute).SetVal(true)
			},
		},
		{
			name: "held elsewhere",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "tok-1", time.Minute).SetVal(false)
			},
			wantErr: ErrLeaseHeld,
		},
		{
			name: "redis error",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "tok-1", time.Minute).SetErr(errors.New("connection refused"))
			},
			wantCode: apperrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker, mock := newTestRedisLocker()
			tt.mockSetup(mock)

			l, err := locker.Acquire(context.Background(), ServerKey("s1"), time.Minute)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				require.Error(t, err)
				assert.True(t, apperrors.IsErrorCode(err, tt.wantCode))
			default:
				require.NoError(t, err)
				assert.Equal(t, "server:s1", l.Key())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisLocker_DefaultTTL(t *testing.T) {
	locker, mock := newTestRedisLocker()
	mock.ExpectSetNX(keyPrefix+"user:alice", "tok-1", DefaultTTL).SetVal(true)

	_, err := locker.Acquire(context.Background(), UserKey("alice"), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Release(t *testing.T) {
	key := keyPrefix + "server:s1"

	t.Run("owned", func(t *testing.T) {
		locker, mock := newTestRedisLocker()
		mock.ExpectSetNX(key, "tok-1", time.Minute).SetVal(true)
		mock.ExpectEval(releaseLua, []string{key}, "tok-1").SetVal(int64(1))

		l, err := locker.Acquire(context.Background(), ServerKey("s1"), time.Minute)
		require.NoError(t, err)
		require.NoError(t, l.Release(context.Background()))
		require.NoError(t, l.Release(context.Background()), "second release does not hit redis")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("taken over", func(t *testing.T) {
		locker, mock := newTestRedisLocker()
		mock.ExpectSetNX(key, "tok-1", time.Minute).SetVal(true)
		mock.ExpectEval(releaseLua, []string{key}, "tok-1").SetVal(int64(0))

		l, err := locker.Acquire(context.Background(), ServerKey("s1"), time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, l.Release(context.Background()), ErrLeaseLost)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewLocker(t *testing.T) {
	locker, closeFn, err := NewLocker(context.Background(), config.LeaseConfig{Backend: config.LeaseBackendMemory}, config.RedisConfig{}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLocker{}, locker)
	assert.NoError(t, closeFn())

	_, _, err = NewLocker(context.Background(), config.LeaseConfig{Backend: "etcd"}, config.RedisConfig{}, logger.Discard())
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeConfiguration))
}
