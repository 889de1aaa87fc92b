package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/relaybot/core/logger"
)

// advanceDateScript mirrors shouldAdvance inside Redis so concurrent bot
// instances cannot both consume the same day.
var advanceDateScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur and string.match(cur, "^%d%d%d%d%-%d%d%-%d%d$") and cur >= ARGV[2] then
    return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

var compareAndSwapScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
    redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
    return 1
end
return 0
`)

var compareAndDeleteScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
    return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// Redis stores a namespace as one hash, "<prefix>:<namespace>".
type Redis struct {
	client *redis.Client
	hash   string
}

// NewRedis binds a namespace to a client. An empty prefix defaults to "relay".
func NewRedis(client *redis.Client, prefix, namespace string) *Redis {
	if prefix == "" {
		prefix = "relay"
	}
	return &Redis{client: client, hash: prefix + ":" + namespace}
}

// Hash returns the Redis key holding the namespace.
func (r *Redis) Hash() string { return r.hash }

// Get returns the value stored for key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.fail(ctx, "hget", key, err)
	}
	return v, true, nil
}

// Set overwrites the value for key.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, r.hash, key, value).Err(); err != nil {
		return r.fail(ctx, "hset", key, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.HDel(ctx, r.hash, key).Result()
	if err != nil {
		return false, r.fail(ctx, "hdel", key, err)
	}
	return n > 0, nil
}

// CompareAndSwap stores value if key holds old, in one script call.
func (r *Redis) CompareAndSwap(ctx context.Context, key, old, value string) (bool, error) {
	n, err := compareAndSwapScript.Run(ctx, r.client, []string{r.hash}, key, old, value).Int()
	if err != nil {
		return false, r.fail(ctx, "cas", key, err)
	}
	return n == 1, nil
}

// CompareAndDelete removes key if it holds old, in one script call.
func (r *Redis) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, r.client, []string{r.hash}, key, old).Int()
	if err != nil {
		return false, r.fail(ctx, "cad", key, err)
	}
	return n == 1, nil
}

// AdvanceDate implements DateAdvancer with a Lua script.
func (r *Redis) AdvanceDate(ctx context.Context, key, date string) (bool, error) {
	n, err := advanceDateScript.Run(ctx, r.client, []string{r.hash}, key, date).Int()
	if err != nil {
		return false, r.fail(ctx, "advance", key, err)
	}
	return n == 1, nil
}

func (r *Redis) fail(ctx context.Context, op, key string, err error) error {
	logger.Error(ctx, "store", "redis."+op,
		slog.String("status", "fail"),
		slog.String("hash", r.hash),
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("kv: redis %s %s/%s: %w", op, r.hash, key, err)
}
