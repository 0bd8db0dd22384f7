package httpmiddleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"artwink/internal/metrics"
)

// Limiter decides whether key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects requests over the per-IP limit with 429. Limiter errors
// let the request through.
func RateLimit(l Limiter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down."})
			return
		}
		c.Next()
	}
}

// SimpleTokenBucket is an in-memory per-key limiter for a single instance.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

func (l *SimpleTokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, nil
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// RedisWindow counts requests per key in fixed one-minute windows shared by
// every instance using the same redis.
type RedisWindow struct {
	client *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedisWindow allows perMinute requests per key per minute.
func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return &RedisWindow{client: client, limit: perMinute, prefix: "artwink:ratelimit:", now: time.Now}
}

func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	k := l.prefix + key + ":" + strconv.FormatInt(window, 10)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}
