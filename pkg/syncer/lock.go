package syncer

import (
	"context"
	"errors"
	"time"

	fernredis "github.com/Ramsey-B/fern/pkg/redis"
)

// Locker serializes invocations across processes. Lock returns a release func.
type Locker interface {
	Lock(ctx context.Context, ttl time.Duration) (release func(context.Context) error, err error)
}

const lockKey = "sync"

type redisLocker struct {
	locker *fernredis.Locker
}

// NewRedisLocker guards runs with a Redis lock.
func NewRedisLocker(locker *fernredis.Locker) Locker {
	return redisLocker{locker: locker}
}

func (l redisLocker) Lock(ctx context.Context, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.locker.Acquire(ctx, lockKey, ttl)
	if errors.Is(err, fernredis.ErrLockNotAcquired) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
