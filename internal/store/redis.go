package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client shared by the queue and the rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity. A nil Redis is never healthy.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
