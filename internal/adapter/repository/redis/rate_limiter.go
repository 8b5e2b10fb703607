package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

const rateLimitKeyPrefix = "ratelimit:"

// admitScript purges members scored at or before now-window, then records
// now unless the remaining count already reached the limit. Returns
// {allowed, count}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('EXPIRE', key, window)
return {1, count + 1}
`)

// RateLimiter is a domain.RateLimiter sharing its windows across ingest
// replicas through one sorted set per key.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimiter creates a Redis-backed sliding window limiter.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, prefix: rateLimitKeyPrefix}
}

// WithPrefix namespaces the limiter's keys so endpoints keep separate windows.
func (l *RateLimiter) WithPrefix(endpoint string) *RateLimiter {
	l.prefix = rateLimitKeyPrefix + endpoint + ":"
	return l
}

// Admit runs the admission check atomically on the Redis server.
func (l *RateLimiter) Admit(ctx context.Context, key string, now time.Time) (domain.Decision, error) {
	windowSec := int64(l.window / time.Second)
	member := strconv.FormatInt(now.Unix(), 10) + "-" + uuid.NewString()

	res, err := admitScript.Run(ctx, l.client,
		[]string{l.key(key)},
		now.Unix(), windowSec, l.limit, member,
	).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	return decisionFromReply(res, l.limit, l.window)
}

func (l *RateLimiter) key(k string) string {
	return l.prefix + k
}

// decisionFromReply maps the {allowed, count} script reply onto a Decision.
func decisionFromReply(res []int64, limit int, window time.Duration) (domain.Decision, error) {
	if len(res) != 2 {
		return domain.Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	d := domain.Decision{Limit: limit}
	if res[0] == 1 {
		d.Allowed = true
		d.Remaining = max(limit-int(res[1]), 0)
	} else {
		d.RetryAfter = window
	}
	return d, nil
}
