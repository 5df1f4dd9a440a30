package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tradmak/aixos/internal/dispatch"
	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/metrics"
	"github.com/tradmak/aixos/internal/reasoning"
	"github.com/tradmak/aixos/internal/redis"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// dashboardPrefix routes an AI chat input to the intelligence-core path
// instead of the chat pipeline.
const dashboardPrefix = "/dashboard:"

// ReportSource is the dashboard aggregate provider; *metrics.Reader in
// production.
type ReportSource interface {
	Report(ctx context.Context) (metrics.Report, error)
}

type AIChatService struct {
	data      gateway.Data
	cache     *redis.CacheStore
	limiter   *redis.RateLimiter
	reasoning *reasoning.Service
	webhooks  *dispatch.Webhooks
	reports   ReportSource
	resources *ResourceService
	log       *logger.Logger
}

func NewAIChatService(data gateway.Data, cache *redis.CacheStore, limiter *redis.RateLimiter, reason *reasoning.Service, webhooks *dispatch.Webhooks, reports ReportSource, resources *ResourceService, log *logger.Logger) *AIChatService {
	return &AIChatService{
		data:      data,
		cache:     cache,
		limiter:   limiter,
		reasoning: reason,
		webhooks:  webhooks,
		reports:   reports,
		resources: resources,
		log:       log,
	}
}

// Sessions lists the agent's AI sessions, most recently active first.
func (s *AIChatService) Sessions(ctx context.Context, agentID string) ([]domain.Conversation, error) {
	rows, err := s.data.Query(ctx, "ai_conversations",
		gateway.Filter{"agent_id": gateway.Eq(agentID)},
		gateway.Desc("last_message_at"), 0)
	if err != nil {
		return nil, err
	}
	list := make([]domain.Conversation, 0, len(rows))
	for _, r := range rows {
		list = append(list, domain.ConversationFromRow(domain.KindAIAssistant, r))
	}
	return list, nil
}

// CreateSession opens a titled session for the agent.
func (s *AIChatService) CreateSession(ctx context.Context, agentID, firstInput string) (domain.Conversation, error) {
	row, err := s.data.Mutate(ctx, "ai_conversations", gateway.OpInsert, map[string]any{
		"agent_id": agentID,
		"title":    domain.SessionTitle(firstInput),
	}, nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.ConversationFromRow(domain.KindAIAssistant, row), nil
}

// RenameSession retitles a session the agent owns.
func (s *AIChatService) RenameSession(ctx context.Context, agentID, sessionID, title string) error {
	if title == "" {
		return aixos_errors.ErrInvalidInput
	}
	_, err := s.data.Mutate(ctx, "ai_conversations", gateway.OpUpdate,
		map[string]any{"title": title},
		gateway.Filter{"id": gateway.Eq(sessionID), "agent_id": gateway.Eq(agentID)})
	return err
}

// DeleteSession removes a session and its messages. The platform cascades
// ai_messages on the foreign key; only the session row is deleted here.
func (s *AIChatService) DeleteSession(ctx context.Context, agentID, sessionID string) error {
	_, err := s.data.Mutate(ctx, "ai_conversations", gateway.OpDelete, nil,
		gateway.Filter{"id": gateway.Eq(sessionID), "agent_id": gateway.Eq(agentID)})
	return err
}

// Reply produces and persists the assistant's answer to an input the agent
// already sent through the core. "/Dashboard:" inputs are answered from the
// live metrics report; everything else goes to the chat pipeline, falling
// back to the reasoning gateway with unlocked-knowledge context when no
// pipeline is configured.
func (s *AIChatService) Reply(ctx context.Context, agent domain.Agent, sessionID, input string, history []domain.Message) (domain.Message, error) {
	if sessionID == "" || strings.TrimSpace(input) == "" {
		return domain.Message{}, aixos_errors.ErrInvalidInput
	}

	res, err := s.limiter.AllowReasoning(ctx, agent.ID)
	if err != nil {
		s.log.Warnf("aichat: rate limit check: %v", err)
	} else if !res.Allowed {
		return domain.Message{}, fmt.Errorf("reasoning budget exhausted, retry in %s: %w", res.ResetIn, aixos_errors.ErrRateLimited)
	}

	var reply string
	if query, ok := dashboardQuery(input); ok {
		reply = s.dashboardReply(ctx, agent, query)
	} else {
		reply = s.chatReply(ctx, agent, sessionID, input, history)
	}

	row, err := s.data.Mutate(ctx, "ai_messages", gateway.OpInsert, map[string]any{
		"conversation_id": sessionID,
		"role":            "ai",
		"content":         reply,
	}, nil)
	if err != nil {
		return domain.Message{}, err
	}

	s.touchSession(sessionID)
	return domain.MessageFromRow(row), nil
}

func dashboardQuery(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < len(dashboardPrefix) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(dashboardPrefix)], dashboardPrefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(dashboardPrefix):]), true
}

func (s *AIChatService) dashboardReply(ctx context.Context, agent domain.Agent, query string) string {
	report, err := s.cachedReport(ctx)
	if err != nil {
		s.log.Errorf("aichat: metrics report: %v", err)
		return "Neural link degraded: live system report unavailable."
	}
	return s.reasoning.DashboardAnswer(ctx, agent.Name, query, report)
}

func (s *AIChatService) cachedReport(ctx context.Context) (metrics.Report, error) {
	if raw, ok, err := s.cache.GetReport(ctx); err == nil && ok {
		var report metrics.Report
		if err := json.Unmarshal(raw, &report); err == nil {
			return report, nil
		}
	}
	report, err := s.reports.Report(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	if data, err := json.Marshal(report); err == nil {
		if err := s.cache.SetReport(ctx, data); err != nil {
			s.log.Warnf("aichat: report cache set: %v", err)
		}
	}
	return report, nil
}

func (s *AIChatService) chatReply(ctx context.Context, agent domain.Agent, sessionID, input string, history []domain.Message) string {
	reply, err := s.webhooks.ChatReply(ctx, sessionID, input)
	if err == nil && reply != "" {
		return reply
	}
	if err != nil {
		s.log.Warnf("aichat: chat pipeline: %v", err)
	}

	knowledge, kerr := s.resources.KnowledgeContext(ctx, agent.ID)
	if kerr != nil {
		s.log.Warnf("aichat: knowledge context: %v", kerr)
	}
	return s.reasoning.SupportReply(ctx, agent.Name, append(history, domain.Message{
		SenderType: domain.SenderUser,
		Content:    input,
	}), knowledge)
}

func (s *AIChatService) touchSession(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.data.Mutate(ctx, "ai_conversations", gateway.OpUpdate,
		map[string]any{"last_message_at": time.Now().UTC().Format(time.RFC3339)},
		gateway.Filter{"id": gateway.Eq(sessionID)})
	if err != nil {
		s.log.Warnf("aichat: session touch %s: %v", sessionID, err)
	}
}
