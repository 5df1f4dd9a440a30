package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tradmak/aixos/internal/domain"
)

// Cache key patterns:
// - convlist:{kind}:{agent_id} - 5m TTL, conversation list per screen
// - agent:{user_id} - 5m TTL, agent profile
// - report:dashboard - 30s TTL, metrics report snapshot

type CacheConfig struct {
	ListTTL   time.Duration // conversation list cache
	AgentTTL  time.Duration // agent profile cache
	ReportTTL time.Duration // dashboard report cache
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ListTTL:   5 * time.Minute,
		AgentTTL:  5 * time.Minute,
		ReportTTL: 30 * time.Second,
	}
}

// CacheStore is a read-through cache over the platform's REST surface. All
// getters return (zero, false, nil) on a miss; callers fall back to REST and
// repopulate. Invalidation is per-key on writes, TTL otherwise.
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{client: client, config: config}
}

// --- Conversation list cache ---

func listKey(kind domain.Kind, agentID string) string {
	return fmt.Sprintf("convlist:%s:%s", kind, agentID)
}

func (c *CacheStore) GetConversationList(ctx context.Context, kind domain.Kind, agentID string) ([]domain.Conversation, bool, error) {
	data, err := c.client.Get(ctx, listKey(kind, agentID)).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []domain.Conversation
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

func (c *CacheStore) SetConversationList(ctx context.Context, kind domain.Kind, agentID string, list []domain.Conversation) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(kind, agentID), data, c.config.ListTTL).Err()
}

// InvalidateConversationLists drops every cached list for a kind. Called on
// writes that change list membership (assignment, creation, status).
func (c *CacheStore) InvalidateConversationLists(ctx context.Context, kind domain.Kind) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("convlist:%s:*", kind), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// --- Agent profile cache ---

func agentKey(userID string) string {
	return "agent:" + userID
}

func (c *CacheStore) GetAgent(ctx context.Context, userID string) (domain.Agent, bool, error) {
	data, err := c.client.Get(ctx, agentKey(userID)).Result()
	if err == goredis.Nil {
		return domain.Agent{}, false, nil
	}
	if err != nil {
		return domain.Agent{}, false, err
	}
	var agent domain.Agent
	if err := json.Unmarshal([]byte(data), &agent); err != nil {
		return domain.Agent{}, false, err
	}
	return agent, true, nil
}

func (c *CacheStore) SetAgent(ctx context.Context, userID string, agent domain.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, agentKey(userID), data, c.config.AgentTTL).Err()
}

func (c *CacheStore) InvalidateAgent(ctx context.Context, userID string) error {
	return c.client.Del(ctx, agentKey(userID)).Err()
}

// --- Dashboard report cache ---

const reportKey = "report:dashboard"

// GetReport returns the cached metrics report JSON. The report is stored as
// raw JSON so this package stays decoupled from the metrics types.
func (c *CacheStore) GetReport(ctx context.Context) (json.RawMessage, bool, error) {
	data, err := c.client.Get(ctx, reportKey).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

func (c *CacheStore) SetReport(ctx context.Context, report json.RawMessage) error {
	return c.client.Set(ctx, reportKey, []byte(report), c.config.ReportTTL).Err()
}

func (c *CacheStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
