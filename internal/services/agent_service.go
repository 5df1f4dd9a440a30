package services

import (
	"context"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/redis"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// AgentService covers the settings screen's profile actions and the agent
// directory used by assignment and direct-message pickers.
type AgentService struct {
	data  gateway.Data
	cache *redis.CacheStore
	log   *logger.Logger
}

func NewAgentService(data gateway.Data, cache *redis.CacheStore, log *logger.Logger) *AgentService {
	return &AgentService{data: data, cache: cache, log: log}
}

// Directory lists all agents.
func (a *AgentService) Directory(ctx context.Context) ([]domain.Agent, error) {
	rows, err := a.data.Query(ctx, "agents", nil, gateway.Asc("name"), 0)
	if err != nil {
		return nil, err
	}
	agents := make([]domain.Agent, 0, len(rows))
	for _, r := range rows {
		agents = append(agents, domain.AgentFromRow(r))
	}
	return agents, nil
}

// UpdateTheme persists the agent's theme choice and drops the cached
// profile so the next request sees it.
func (a *AgentService) UpdateTheme(ctx context.Context, agent domain.Agent, theme string) error {
	switch theme {
	case "light", "dark":
	default:
		return aixos_errors.ErrInvalidInput
	}
	_, err := a.data.Mutate(ctx, "agents", gateway.OpUpdate,
		map[string]any{"theme": theme},
		gateway.Filter{"id": gateway.Eq(agent.ID)})
	if err != nil {
		return err
	}
	// Profile cache is keyed by the auth user id, not the agent row id.
	if err := a.cache.InvalidateAgent(ctx, agent.UserID); err != nil {
		a.log.Warnf("agent: cache invalidate: %v", err)
	}
	return nil
}
