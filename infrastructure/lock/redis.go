package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nerdsphere/errors"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	redisKeyPrefix = "nerdsphere:lock:"
	retryDelay     = 25 * time.Millisecond
)

// Only the holder of the token may delete the lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis grants leases with SET NX PX so every instance sharing the Redis
// server sees the same holder. A lease outlives a crashed holder by at most ttl.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

func NewRedis(client *redis.Client, log *slog.Logger, ttl time.Duration) *Redis {
	return &Redis{client: client, log: log, ttl: ttl}
}

// ConnectRedis builds a client and checks it with a ping.
func ConnectRedis(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w: %w", redisKey, errors.ErrLockNotAcquired, ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return func() {
		// The caller's context may already be done, release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.Background(), r.ttl)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn("Failed to release lock", "key", redisKey, "error", err)
		}
	}, nil
}
