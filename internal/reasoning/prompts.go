package reasoning

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/metrics"
	"github.com/tradmak/aixos/pkg/logger"
)

const (
	supportFallback   = "I'm sorry, I couldn't process that. A human agent will be with you shortly."
	dashboardFallback = "Neural link stable, but no data retrieved."

	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// Service wraps a Completer with the console's prompt builders. Completion
// failures degrade to canned fallbacks rather than surfacing as errors: a
// support reply or dashboard answer that says "try again" beats a broken
// screen.
type Service struct {
	completer Completer
	log       *logger.Logger
}

func NewService(completer Completer, log *logger.Logger) *Service {
	return &Service{completer: completer, log: log}
}

// SupportReply drafts an answer to a contact's latest message. Unlocked
// knowledge packs are injected as authoritative context; recent history
// keeps the model on-thread.
func (s *Service) SupportReply(ctx context.Context, contactName string, history []domain.Message, knowledge []domain.Resource) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful support agent for AIXOS. Keep replies concise, friendly and professional.\n")
	if contactName != "" {
		sb.WriteString("You are speaking with " + contactName + ".\n")
	}
	if len(knowledge) > 0 {
		sb.WriteString("\nUse the following knowledge base when relevant. It is authoritative:\n")
		for _, res := range knowledge {
			if res.KnowledgeContent == "" {
				continue
			}
			sb.WriteString("\n### " + res.Name + "\n")
			sb.WriteString(res.KnowledgeContent + "\n")
		}
	}

	var prompt strings.Builder
	prompt.WriteString("Conversation so far:\n")
	for _, msg := range history {
		label := "Contact"
		if msg.SenderType != domain.SenderUser {
			label = "Agent"
		}
		prompt.WriteString(label + ": " + msg.Content + "\n")
	}
	prompt.WriteString("\nWrite the next agent reply. Reply with the message text only.")

	out, err := s.completer.Complete(ctx, sb.String(), prompt.String())
	if err != nil || out == "" {
		if err != nil {
			s.log.Warnf("support reply completion failed: %v", err)
		}
		return supportFallback
	}
	return out
}

// DashboardAnswer answers an operator's free-form question over a live
// metrics report. Markdown emphasis markers are stripped because the console
// renders the answer as plain text with pipe tables only.
func (s *Service) DashboardAnswer(ctx context.Context, operatorName, query string, report metrics.Report) string {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		s.log.Warnf("dashboard report marshal failed: %v", err)
		return dashboardFallback
	}

	system := "You are the AIXOS intelligence core, the analytical engine of a CRM operations console.\n" +
		"Answer the operator's question using ONLY the live system report below. Be direct and specific; " +
		"cite numbers from the report. When listing records, format them as a pipe-separated table.\n\n" +
		"LIVE SYSTEM REPORT:\n" + string(reportJSON)
	if operatorName != "" {
		system += "\n\nThe operator's name is " + operatorName + "."
	}

	out, err := s.completer.Complete(ctx, system, query)
	if err != nil || out == "" {
		if err != nil {
			s.log.Warnf("dashboard completion failed: %v", err)
		}
		return dashboardFallback
	}
	return stripEmphasis(out)
}

// Sentiment scores a conversation as one word. Anything the model says that
// is not an exact known label collapses to NEUTRAL.
func (s *Service) Sentiment(ctx context.Context, history []domain.Message) string {
	if len(history) == 0 {
		return SentimentNeutral
	}
	var prompt strings.Builder
	prompt.WriteString("Classify the overall customer sentiment of this conversation. " +
		"Respond with exactly one word: POSITIVE, NEGATIVE or NEUTRAL.\n\n")
	for _, msg := range history {
		if msg.SenderType != domain.SenderUser {
			continue
		}
		prompt.WriteString(msg.Content + "\n")
	}

	out, err := s.completer.Complete(ctx, "", prompt.String())
	if err != nil {
		s.log.Warnf("sentiment completion failed: %v", err)
		return SentimentNeutral
	}
	switch strings.ToUpper(strings.TrimSpace(out)) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func stripEmphasis(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '*' || r == '#' {
			return -1
		}
		return r
	}, s)
}
