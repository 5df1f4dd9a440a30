package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{agent_id}:reasoning - per-minute reasoning completions
// - ratelimit:{agent_id}:dispatch - per-minute outbound email/webhook sends
// - ratelimit:{ip}:auth - per-minute auth attempts

type RateLimitConfig struct {
	ReasoningLimit  int
	ReasoningWindow time.Duration
	DispatchLimit   int
	DispatchWindow  time.Duration
	AuthLimit       int
	AuthWindow      time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ReasoningLimit:  20, // 20 completions per minute per agent
		ReasoningWindow: 60 * time.Second,
		DispatchLimit:   30, // 30 outbound sends per minute per agent
		DispatchWindow:  60 * time.Second,
		AuthLimit:       5,
		AuthWindow:      60 * time.Second,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowReasoning checks and consumes one reasoning-completion slot.
func (r *RateLimiter) AllowReasoning(ctx context.Context, agentID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:reasoning", agentID)
	return r.checkLimit(ctx, key, r.config.ReasoningLimit, r.config.ReasoningWindow)
}

// AllowDispatch checks and consumes one outbound-send slot.
func (r *RateLimiter) AllowDispatch(ctx context.Context, agentID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:dispatch", agentID)
	return r.checkLimit(ctx, key, r.config.DispatchLimit, r.config.DispatchWindow)
}

// AllowAuth checks and consumes one auth attempt for an IP.
func (r *RateLimiter) AllowAuth(ctx context.Context, ip string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:auth", ip)
	return r.checkLimit(ctx, key, r.config.AuthLimit, r.config.AuthWindow)
}

// checkLimit increments and checks atomically via a Lua script.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))
	resetIn := time.Duration(resultSlice[2].(int64)) * time.Second

	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     limit,
	}, nil
}

// Reset clears the limit for a key (admin operation).
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ResetAgent clears all limits for an agent.
func (r *RateLimiter) ResetAgent(ctx context.Context, agentID string) error {
	keys := []string{
		fmt.Sprintf("ratelimit:%s:reasoning", agentID),
		fmt.Sprintf("ratelimit:%s:dispatch", agentID),
	}
	return r.client.Del(ctx, keys...).Err()
}
