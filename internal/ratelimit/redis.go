package ratelimit

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis connects to Redis and returns a limiter shared across API replicas.
// Redis failures during Allow fail open.
func NewRedis(ctx context.Context, addr, password string, db int, logger *slog.Logger) (Limiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisWithClient(client, logger), nil
}

func newRedisWithClient(client redis.UniversalClient, logger *slog.Logger) *redisLimiter {
	return &redisLimiter{
		client:  client,
		logger:  logger,
		prefix:  "taxportal:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		pttl = p.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		rl.logRedisError("incr", err)
		return Decision{Allowed: true}
	}
	counter := incr.Val()
	left := pttl.Val()
	// A key without expiry is either new or lost its EXPIRE; every caller repairs it.
	if left < 0 {
		if err := rl.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			rl.logRedisError("expire", err)
		}
		left = window
	}
	return Decision{
		Allowed: int(counter) <= limit,
		Count:   int(counter),
		ResetAt: time.Now().Add(left),
	}
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
