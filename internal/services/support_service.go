// Package services holds one thin orchestration service per console screen.
// Services translate screen intents into gateway calls; message streams
// themselves are owned by the sync core, never by a service.
package services

import (
	"context"
	"fmt"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/reasoning"
	"github.com/tradmak/aixos/internal/redis"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// ListScope selects which support conversations a tab shows.
type ListScope string

const (
	ScopeAll        ListScope = "all"
	ScopeMine       ListScope = "mine"
	ScopeUnassigned ListScope = "unassigned"
)

type SupportService struct {
	data      gateway.Data
	cache     *redis.CacheStore
	reasoning *reasoning.Service
	limiter   *redis.RateLimiter
	resources *ResourceService
	log       *logger.Logger
}

func NewSupportService(data gateway.Data, cache *redis.CacheStore, reason *reasoning.Service, limiter *redis.RateLimiter, resources *ResourceService, log *logger.Logger) *SupportService {
	return &SupportService{data: data, cache: cache, reasoning: reason, limiter: limiter, resources: resources, log: log}
}

// List returns support conversations for a tab, newest activity first, with
// the contact embedded. Non-admin agents asking for ScopeAll get their own
// plus unassigned; admins see everything.
func (s *SupportService) List(ctx context.Context, agent domain.Agent, scope ListScope) ([]domain.Conversation, error) {
	cacheKey := string(scope) + ":" + agent.ID
	if list, ok, err := s.cache.GetConversationList(ctx, domain.KindHumanSupport, cacheKey); err == nil && ok {
		return list, nil
	}

	filter := gateway.Filter{"select": "*,contact:contacts(*)"}
	switch scope {
	case ScopeMine:
		filter["assigned_agent_id"] = gateway.Eq(agent.ID)
	case ScopeUnassigned:
		filter["assigned_agent_id"] = gateway.IsNull()
	}

	rows, err := s.data.Query(ctx, "conversations", filter, gateway.Desc("last_activity_at"), 0)
	if err != nil {
		return nil, err
	}

	list := make([]domain.Conversation, 0, len(rows))
	for _, r := range rows {
		conv := domain.ConversationFromRow(domain.KindHumanSupport, r)
		if scope == ScopeAll && !agent.IsAdmin() &&
			conv.AssignedAgentID != "" && conv.AssignedAgentID != agent.ID {
			continue
		}
		list = append(list, conv)
	}

	if err := s.cache.SetConversationList(ctx, domain.KindHumanSupport, cacheKey, list); err != nil {
		s.log.Warnf("support: list cache set: %v", err)
	}
	return list, nil
}

// MonitorAISessions lists every agent's AI sessions for the admin
// monitoring tab. Callers open each one in a read-only core instance.
func (s *SupportService) MonitorAISessions(ctx context.Context, agent domain.Agent) ([]domain.Conversation, error) {
	if !agent.IsAdmin() {
		return nil, aixos_errors.ErrForbidden
	}
	rows, err := s.data.Query(ctx, "ai_conversations",
		gateway.Filter{"select": "*,agent:agents(*)"},
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

// Assign hands a conversation to an agent and reopens it.
func (s *SupportService) Assign(ctx context.Context, conversationID, agentID string) error {
	if conversationID == "" || agentID == "" {
		return aixos_errors.ErrInvalidInput
	}
	_, err := s.data.Mutate(ctx, "conversations", gateway.OpUpdate,
		map[string]any{
			"assigned_agent_id": agentID,
			"status":            string(domain.StatusOpen),
		},
		gateway.Filter{"id": gateway.Eq(conversationID)})
	if err != nil {
		return err
	}
	if err := s.cache.InvalidateConversationLists(ctx, domain.KindHumanSupport); err != nil {
		s.log.Warnf("support: list cache invalidate: %v", err)
	}
	return nil
}

// SetStatus moves a conversation through its lifecycle.
func (s *SupportService) SetStatus(ctx context.Context, conversationID string, status domain.ConversationStatus) error {
	switch status {
	case domain.StatusOpen, domain.StatusPending, domain.StatusResolved, domain.StatusClosed:
	default:
		return aixos_errors.ErrInvalidInput
	}
	_, err := s.data.Mutate(ctx, "conversations", gateway.OpUpdate,
		map[string]any{"status": string(status)},
		gateway.Filter{"id": gateway.Eq(conversationID)})
	if err != nil {
		return err
	}
	if err := s.cache.InvalidateConversationLists(ctx, domain.KindHumanSupport); err != nil {
		s.log.Warnf("support: list cache invalidate: %v", err)
	}
	return nil
}

func (s *SupportService) SetPriority(ctx context.Context, conversationID string, priority int) error {
	if priority < 0 || priority > 3 {
		return aixos_errors.ErrInvalidInput
	}
	_, err := s.data.Mutate(ctx, "conversations", gateway.OpUpdate,
		map[string]any{"priority": priority},
		gateway.Filter{"id": gateway.Eq(conversationID)})
	return err
}

// DraftReply asks the reasoning gateway for a suggested answer grounded on
// the conversation history and the agent's unlocked knowledge packs.
func (s *SupportService) DraftReply(ctx context.Context, agent domain.Agent, conversationID string) (string, error) {
	res, err := s.limiter.AllowReasoning(ctx, agent.ID)
	if err != nil {
		s.log.Warnf("support: rate limit check: %v", err)
	} else if !res.Allowed {
		return "", fmt.Errorf("reasoning budget exhausted, retry in %s: %w", res.ResetIn, aixos_errors.ErrRateLimited)
	}

	history, err := s.history(ctx, conversationID)
	if err != nil {
		return "", err
	}

	knowledge, err := s.resources.KnowledgeContext(ctx, agent.ID)
	if err != nil {
		s.log.Warnf("support: knowledge context: %v", err)
	}

	contactName := ""
	if rows, err := s.data.Query(ctx, "conversations",
		gateway.Filter{"id": gateway.Eq(conversationID), "select": "*,contact:contacts(*)"}, nil, 1); err == nil && len(rows) > 0 {
		if conv := domain.ConversationFromRow(domain.KindHumanSupport, rows[0]); conv.Contact != nil {
			contactName = conv.Contact.Name
		}
	}

	return s.reasoning.SupportReply(ctx, contactName, history, knowledge), nil
}

// Sentiment classifies the contact side of a conversation as one word.
func (s *SupportService) Sentiment(ctx context.Context, agent domain.Agent, conversationID string) (string, error) {
	res, err := s.limiter.AllowReasoning(ctx, agent.ID)
	if err != nil {
		s.log.Warnf("support: rate limit check: %v", err)
	} else if !res.Allowed {
		return "", aixos_errors.ErrRateLimited
	}
	history, err := s.history(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return s.reasoning.Sentiment(ctx, history), nil
}

// history returns the most recent prompt-context slice of a conversation.
func (s *SupportService) history(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if conversationID == "" {
		return nil, aixos_errors.ErrInvalidInput
	}
	rows, err := s.data.Query(ctx, "messages",
		gateway.Filter{"conversation_id": gateway.Eq(conversationID)},
		gateway.Desc("created_at"), 20)
	if err != nil {
		return nil, err
	}
	history := make([]domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		history = append(history, domain.MessageFromRow(rows[i]))
	}
	return history, nil
}
