package services

import (
	"context"
	"encoding/json"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

type ChannelService struct {
	data gateway.Data
	log  *logger.Logger
}

func NewChannelService(data gateway.Data, log *logger.Logger) *ChannelService {
	return &ChannelService{data: data, log: log}
}

// List returns the channels the agent belongs to. Private 1:1 channels get
// the other member's name as their display title.
func (c *ChannelService) List(ctx context.Context, agentID string) ([]domain.InternalChannel, error) {
	memberRows, err := c.data.Query(ctx, "channel_members",
		gateway.Filter{"agent_id": gateway.Eq(agentID)}, nil, 0)
	if err != nil {
		return nil, err
	}
	if len(memberRows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(memberRows))
	for _, r := range memberRows {
		if id := r.String("channel_id"); id != "" {
			ids = append(ids, id)
		}
	}

	rows, err := c.data.Query(ctx, "internal_channels",
		gateway.Filter{"id": gateway.In(ids)}, gateway.Desc("created_at"), 0)
	if err != nil {
		return nil, err
	}

	channels := make([]domain.InternalChannel, 0, len(rows))
	for _, r := range rows {
		ch := domain.ChannelFromRow(r)
		if ch.IsPrivate {
			if name, err := c.otherMemberName(ctx, ch.ID, agentID); err == nil {
				ch.OtherMemberName = name
			}
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (c *ChannelService) otherMemberName(ctx context.Context, channelID, selfID string) (string, error) {
	rows, err := c.data.Query(ctx, "channel_members",
		gateway.Filter{
			"channel_id": gateway.Eq(channelID),
			"agent_id":   gateway.Neq(selfID),
			"select":     "agent:agents(*)",
		}, nil, 1)
	if err != nil || len(rows) == 0 {
		return "", err
	}
	if nested := rows[0].Nested("agent"); nested != nil {
		return domain.AgentFromRow(nested).Name, nil
	}
	return "", nil
}

// Create opens a named team channel with the creator as first member.
func (c *ChannelService) Create(ctx context.Context, agentID, name, description string) (domain.InternalChannel, error) {
	if name == "" {
		return domain.InternalChannel{}, aixos_errors.ErrInvalidInput
	}
	row, err := c.data.Mutate(ctx, "internal_channels", gateway.OpInsert, map[string]any{
		"name":        name,
		"description": description,
		"is_private":  false,
		"created_by":  agentID,
	}, nil)
	if err != nil {
		return domain.InternalChannel{}, err
	}
	ch := domain.ChannelFromRow(row)

	if _, err := c.data.Mutate(ctx, "channel_members", gateway.OpInsert, map[string]any{
		"channel_id": ch.ID,
		"agent_id":   agentID,
	}, nil); err != nil {
		c.log.Warnf("channel: add creator to %s: %v", ch.ID, err)
	}
	return ch, nil
}

// OpenDirect returns the private 1:1 channel between two agents, creating
// it when absent. The platform RPC holds the uniqueness logic.
func (c *ChannelService) OpenDirect(ctx context.Context, selfID, otherID string) (string, error) {
	if selfID == "" || otherID == "" || selfID == otherID {
		return "", aixos_errors.ErrInvalidInput
	}
	raw, err := c.data.RPC(ctx, "get_or_create_private_channel", map[string]any{
		"agent_a": selfID,
		"agent_b": otherID,
	})
	if err != nil {
		return "", err
	}
	return decodeRPCID(raw)
}

// Members lists the agents in a channel.
func (c *ChannelService) Members(ctx context.Context, channelID string) ([]domain.Agent, error) {
	rows, err := c.data.Query(ctx, "channel_members",
		gateway.Filter{
			"channel_id": gateway.Eq(channelID),
			"select":     "agent:agents(*)",
		}, nil, 0)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Agent, 0, len(rows))
	for _, r := range rows {
		if nested := r.Nested("agent"); nested != nil {
			members = append(members, domain.AgentFromRow(nested))
		}
	}
	return members, nil
}

// decodeRPCID extracts an entity id from an RPC result, which the platform
// returns either as a bare JSON string or as a one-row array.
func decodeRPCID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil && len(rows) > 0 {
		if v, ok := rows[0]["id"].(string); ok && v != "" {
			return v, nil
		}
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj["id"].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", aixos_errors.ErrNotFound
}
