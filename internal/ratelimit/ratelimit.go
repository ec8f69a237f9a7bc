package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Counter increments key and starts its expiry on the first hit of a window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisCounter runs the fixed-window script so every replica shares counts.
type RedisCounter struct {
	rdb redis.Scripter
}

func NewRedisCounter(rdb redis.Scripter) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = DefaultWindow.Milliseconds()
	}
	res, err := fixedWindowScript.Run(ctx, c.rdb, []string{key}, ms).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}

type Config struct {
	Limit    int
	Window   time.Duration
	Prefix   string
	FailOpen bool
}

// Limiter is a fixed-window limiter shared by the HTTP and gRPC surfaces.
type Limiter struct {
	counter  Counter
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
}

func New(counter Counter, cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{counter: counter, limit: cfg.Limit, window: cfg.Window, prefix: cfg.Prefix, failOpen: cfg.FailOpen}
}

// Decision is the outcome of one Allow call. Err is set when the counter
// failed; Allowed then reflects the fail-open setting.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int
	Err     error
}

func (l *Limiter) Allow(ctx context.Context, client string) Decision {
	count, err := l.counter.Incr(ctx, l.prefix+":"+client, l.window)
	if err != nil {
		return Decision{Allowed: l.failOpen, Limit: l.limit, Err: err}
	}
	return Decision{Allowed: count <= int64(l.limit), Count: count, Limit: l.limit}
}

func (l *Limiter) Window() time.Duration { return l.window }

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
