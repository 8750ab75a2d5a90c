package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/policies"
	redislock "staypay/internal/infra/lock/redis"
)

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

func TestLocker_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := redislock.NewLocker(db).WithTokens(func() string { return "token-1" })
	ctx := context.Background()

	mock.ExpectSetNX("staypay:lock:booking:b-1", "token-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"staypay:lock:booking:b-1"}, "token-1").SetVal(int64(1))

	release, err := locker.Acquire(ctx, "booking:b-1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_HeldKeyFailsFast(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := redislock.NewLocker(db).WithTokens(func() string { return "token-2" })

	mock.ExpectSetNX("staypay:lock:booking:b-1", "token-2", time.Second).SetVal(false)

	release, err := locker.Acquire(context.Background(), "booking:b-1", time.Second)
	assert.Nil(t, release)
	assert.ErrorIs(t, err, policies.ErrLockNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_RedisErrorIsNotContention(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := redislock.NewLocker(db).WithTokens(func() string { return "token-3" })

	mock.ExpectSetNX("staypay:lock:booking:b-2", "token-3", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.Acquire(context.Background(), "booking:b-2", time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, policies.ErrLockNotAcquired))
	assert.NoError(t, mock.ExpectationsWereMet())
}
