package services

import (
	"context"
	"strings"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/transcript"
)

// MonitorService serves the chatbot monitor screen: the log of website
// chatbot exchanges. Traces are read-only; the screen opens them through a
// read-only core instance.
type MonitorService struct {
	data gateway.Data
	feed gateway.Feed
}

func NewMonitorService(data gateway.Data, feed gateway.Feed) *MonitorService {
	return &MonitorService{data: data, feed: feed}
}

// Traces lists logged chatbot exchanges, newest first.
func (m *MonitorService) Traces(ctx context.Context, limit int) ([]domain.ChatbotTrace, error) {
	rows, err := m.data.Query(ctx, "chatbot_conversation", nil, gateway.Desc("created_at"), limit)
	if err != nil {
		return nil, err
	}
	traces := make([]domain.ChatbotTrace, 0, len(rows))
	for _, r := range rows {
		traces = append(traces, domain.TraceFromRow(r))
	}
	return traces, nil
}

// Search filters traces by name, email, session id or blob content. The
// platform has no text-search endpoint for this table, so filtering happens
// here over the fetched page.
func (m *MonitorService) Search(ctx context.Context, query string, limit int) ([]domain.ChatbotTrace, error) {
	traces, err := m.Traces(ctx, limit)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return traces, nil
	}
	matched := traces[:0]
	for _, t := range traces {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Email), q) ||
			strings.Contains(strings.ToLower(t.SessionID), q) ||
			strings.Contains(strings.ToLower(t.Conversation), q) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// Turns parses a trace blob for display.
func (m *MonitorService) Turns(trace domain.ChatbotTrace) []transcript.Turn {
	return transcript.Parse(trace.Conversation)
}

// WatchTable subscribes to new trace rows table-wide so the monitor list
// refreshes live. Returns the unsubscribe handle.
func (m *MonitorService) WatchTable(ctx context.Context, onTrace func(domain.ChatbotTrace)) (gateway.Unsubscribe, error) {
	return m.feed.Subscribe(ctx, "chatbot_conversation", "", "", func(ev gateway.Event) {
		if ev.Op == gateway.EventDelete {
			return
		}
		onTrace(domain.TraceFromRow(ev.Row))
	})
}
