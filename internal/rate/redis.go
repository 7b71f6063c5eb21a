package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "orgnest:rl:"

var windowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local current = redis.call("INCR", key)
if current == 1 then
  redis.call("PEXPIRE", key, window_ms)
end

if current > limit then
  return 0
end
return 1
`)

// Redis is a fixed-window limiter shared across server replicas.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	windowMS := int64(l.window / time.Millisecond)
	if windowMS <= 0 {
		return false, fmt.Errorf("rate: invalid window")
	}

	res, err := windowScript.Run(ctx, l.client, []string{redisPrefix + key}, l.limit, windowMS).Int64()
	if err != nil {
		// Fail open: a throttling outage must not take logins down with it.
		return true, err
	}
	return res == 1, nil
}
