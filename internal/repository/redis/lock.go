package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const LockKeyPrefix = "lock"

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// DistLock 基于 SETNX 的分布式锁，token 用于防止误删别人的锁
type DistLock struct {
	RDB *redis.Client
	TTL time.Duration
}

func lockKey(name string) string {
	return fmt.Sprintf("%s:%s", LockKeyPrefix, name)
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, name, token string) (bool, error) {
	return l.RDB.SetNX(ctx, lockKey(name), token, l.TTL).Result()
}

// Release 用lua保证原子性
func (l *DistLock) Release(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, l.RDB, []string{lockKey(name)}, token).Err()
}
