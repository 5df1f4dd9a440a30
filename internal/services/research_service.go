package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tradmak/aixos/internal/dispatch"
	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/redis"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

type ResearchService struct {
	data     gateway.Data
	webhooks *dispatch.Webhooks
	limiter  *redis.RateLimiter
	log      *logger.Logger
}

func NewResearchService(data gateway.Data, webhooks *dispatch.Webhooks, limiter *redis.RateLimiter, log *logger.Logger) *ResearchService {
	return &ResearchService{data: data, webhooks: webhooks, limiter: limiter, log: log}
}

// Run submits a target URL to the research pipeline and records the mission.
// The pipeline call is synchronous and slow; the pending row is written
// first so the screen can show the mission immediately.
func (r *ResearchService) Run(ctx context.Context, agent domain.Agent, targetURL string) (domain.ResearchLog, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return domain.ResearchLog{}, aixos_errors.ErrInvalidInput
	}

	res, err := r.limiter.AllowReasoning(ctx, agent.ID)
	if err != nil {
		r.log.Warnf("research: rate limit check: %v", err)
	} else if !res.Allowed {
		return domain.ResearchLog{}, fmt.Errorf("research budget exhausted, retry in %s: %w", res.ResetIn, aixos_errors.ErrRateLimited)
	}

	row, err := r.data.Mutate(ctx, "research_logs", gateway.OpInsert, map[string]any{
		"agent_id":   agent.ID,
		"target_url": targetURL,
		"status":     "running",
	}, nil)
	if err != nil {
		return domain.ResearchLog{}, err
	}
	mission := domain.ResearchLogFromRow(row)

	output, err := r.webhooks.Research(ctx, targetURL)
	status := "completed"
	if err != nil {
		r.log.Errorf("research: pipeline for %s: %v", targetURL, err)
		status = "failed"
		output = ""
	}

	updated, uerr := r.data.Mutate(ctx, "research_logs", gateway.OpUpdate, map[string]any{
		"research_output": output,
		"status":          status,
	}, gateway.Filter{"id": gateway.Eq(mission.ID)})
	if uerr != nil {
		r.log.Errorf("research: record outcome %s: %v", mission.ID, uerr)
		return mission, uerr
	}
	if err != nil {
		return domain.ResearchLogFromRow(updated), aixos_errors.ErrDispatchFailed
	}
	return domain.ResearchLogFromRow(updated), nil
}

// History lists the agent's missions, newest first.
func (r *ResearchService) History(ctx context.Context, agentID string) ([]domain.ResearchLog, error) {
	rows, err := r.data.Query(ctx, "research_logs",
		gateway.Filter{"agent_id": gateway.Eq(agentID)},
		gateway.Desc("created_at"), 0)
	if err != nil {
		return nil, err
	}
	logs := make([]domain.ResearchLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.ResearchLogFromRow(row))
	}
	return logs, nil
}
