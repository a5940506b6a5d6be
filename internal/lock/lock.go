package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-bookworks/internal/logger"
)

// Redis provides a per-order advisory lock. A runner acquires the lock for
// the duration of one order's processing within a pass; a second concurrent
// pass skips orders it cannot lock instead of double-processing them.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func key(orderID string) string {
	return "order_lock:" + orderID
}

// AcquireOrder takes the lock for owner (the runner name). Returns false when
// another owner currently holds it.
func (r *Redis) AcquireOrder(orderID, owner string) (bool, error) {
	ok, err := r.Client.SetNX(context.Background(), key(orderID), owner, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock error for order %s: %w", orderID, err)
	}
	return ok, nil
}

// ReleaseOrder releases the lock if owner still holds it. Releasing a lock
// that expired or belongs to someone else is a no-op.
func (r *Redis) ReleaseOrder(orderID, owner string) error {
	ctx := context.Background()
	val, err := r.Client.Get(ctx, key(orderID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key(orderID)).Result()
		return err
	}
	if r.Logger != nil {
		r.Logger.Warn("LOCK", fmt.Sprintf("order %s lock held by %s, not released by %s", orderID, val, owner))
	}
	return nil
}
