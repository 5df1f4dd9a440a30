package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is what the console shows next to an agent's name.
type PresenceStatus struct {
	AgentID  string    `json:"agent_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore tracks which agents have a live console session. Entries
// expire on TTL; browsers keep them alive through the stream heartbeat.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	presenceHeartbeatKey = "presence:heartbeat:all"
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func (p *PresenceStore) SetOnline(ctx context.Context, agentID string) error {
	now := time.Now()
	status := PresenceStatus{AgentID: agentID, IsOnline: true, LastSeen: now}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+agentID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, agentID)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{
		Score:  float64(now.Unix()),
		Member: agentID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) SetOffline(ctx context.Context, agentID string) error {
	now := time.Now()
	status := PresenceStatus{AgentID: agentID, IsOnline: false, LastSeen: now}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	// Offline entries linger for last-seen display.
	pipe.Set(ctx, presenceKeyPrefix+agentID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, agentID)
	pipe.ZRem(ctx, presenceHeartbeatKey, agentID)
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat refreshes the TTL. Called from the stream connection's ping
// cycle.
func (p *PresenceStore) Heartbeat(ctx context.Context, agentID string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+agentID, p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{
		Score:  float64(time.Now().Unix()),
		Member: agentID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) GetPresence(ctx context.Context, agentID string) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+agentID).Result()
	if err == goredis.Nil {
		return &PresenceStatus{AgentID: agentID}, nil
	}
	if err != nil {
		return nil, err
	}
	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, agentID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, agentID).Result()
}

func (p *PresenceStore) OnlineAgents(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

func (p *PresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}

// CleanupStalePresence marks agents offline whose heartbeat is older than
// maxAge. Run periodically from the server.
func (p *PresenceStore) CleanupStalePresence(ctx context.Context, maxAge time.Duration) (int64, error) {
	threshold := time.Now().Add(-maxAge).Unix()

	stale, err := p.client.ZRangeByScore(ctx, presenceHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	for _, agentID := range stale {
		_ = p.SetOffline(ctx, agentID)
	}
	return int64(len(stale)), nil
}
