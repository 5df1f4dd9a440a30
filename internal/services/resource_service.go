package services

import (
	"context"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// ResourceService manages the knowledge pack catalog. Unlocked packs feed
// the AI chat and support draft-reply prompts as authoritative context.
type ResourceService struct {
	data gateway.Data
}

func NewResourceService(data gateway.Data) *ResourceService {
	return &ResourceService{data: data}
}

// Catalog lists every pack with an unlocked flag for the agent.
func (r *ResourceService) Catalog(ctx context.Context, agentID string) ([]domain.Resource, map[string]bool, error) {
	rows, err := r.data.Query(ctx, "resources", nil, gateway.Asc("name"), 0)
	if err != nil {
		return nil, nil, err
	}
	resources := make([]domain.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, domain.ResourceFromRow(row))
	}

	unlockedRows, err := r.data.Query(ctx, "unlocked_resources",
		gateway.Filter{"agent_id": gateway.Eq(agentID)}, nil, 0)
	if err != nil {
		return nil, nil, err
	}
	unlocked := make(map[string]bool, len(unlockedRows))
	for _, row := range unlockedRows {
		unlocked[row.String("resource_id")] = true
	}
	return resources, unlocked, nil
}

// Unlock grants the agent a pack. Unlocking twice is a no-op.
func (r *ResourceService) Unlock(ctx context.Context, agentID, resourceID string) error {
	if agentID == "" || resourceID == "" {
		return aixos_errors.ErrInvalidInput
	}
	existing, err := r.data.Query(ctx, "unlocked_resources", gateway.Filter{
		"agent_id":    gateway.Eq(agentID),
		"resource_id": gateway.Eq(resourceID),
	}, nil, 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = r.data.Mutate(ctx, "unlocked_resources", gateway.OpInsert, map[string]any{
		"agent_id":    agentID,
		"resource_id": resourceID,
	}, nil)
	return err
}

// KnowledgeContext returns the agent's unlocked packs with content, ready
// for prompt injection.
func (r *ResourceService) KnowledgeContext(ctx context.Context, agentID string) ([]domain.Resource, error) {
	rows, err := r.data.Query(ctx, "unlocked_resources",
		gateway.Filter{
			"agent_id": gateway.Eq(agentID),
			"select":   "resource:resources(*)",
		}, nil, 0)
	if err != nil {
		return nil, err
	}
	var knowledge []domain.Resource
	for _, row := range rows {
		if nested := row.Nested("resource"); nested != nil {
			res := domain.ResourceFromRow(nested)
			if res.KnowledgeContent != "" {
				knowledge = append(knowledge, res)
			}
		}
	}
	return knowledge, nil
}
