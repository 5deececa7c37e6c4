package lock

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
)

// Staleness is delegated to Redis key expiry: the lease becomes the PX TTL,
// so a stale lock simply vanishes and the next Obtain recreates it.
var obtainScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if not holder then
    redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
    return 1
end
if holder == ARGV[1] then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
    return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

const redisKeyPrefix = "evallock:"

// Redis implements Locker using a Redis backend.
type Redis struct {
	client *redis.Client
}

// NewRedis returns a new Redis locker using the provided client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Obtain implements Locker.Obtain.
func (r *Redis) Obtain(ctx context.Context, name, holder string, lease time.Duration) (Status, error) {
	key := redisKeyPrefix + name
	n, err := obtainScript.Run(ctx, r.client, []string{key}, holder, lease.Milliseconds()).Int()
	if err != nil {
		_ = r.client.Del(context.WithoutCancel(ctx), key).Err()
		return StatusError, fmt.Errorf("obtain lock %s: %w: %v", name, evalerrors.ErrStorage, err)
	}
	if n == 1 {
		metrics.LockAcquiredCounter.Inc()
		return StatusAcquired, nil
	}
	metrics.LockDeniedCounter.Inc()
	return StatusDenied, nil
}

// Release implements Locker.Release.
func (r *Redis) Release(ctx context.Context, name, holder string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{redisKeyPrefix + name}, holder).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w: %v", name, evalerrors.ErrStorage, err)
	}
	return n == 1, nil
}
