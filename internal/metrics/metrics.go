// Package metrics aggregates real-time CRM state for the dashboard and the
// intelligence-core query path. It is the one consumer that reads the
// platform's Postgres endpoint directly: nine count(*) round-trips through
// the REST surface per dashboard refresh is not worth it.
package metrics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradmak/aixos/internal/domain"
)

// Report is a snapshot of operational counts plus the freshest traces and
// leads, the exact context the intelligence core is prompted with.
type Report struct {
	Counts          map[string]int64      `json:"counts"`
	ChatbotTraces   []domain.ChatbotTrace `json:"chatbotTraces"`
	RecentInquiries []domain.Inquiry      `json:"recentInquiries"`
}

var countedTables = map[string]string{
	"contacts":              "contacts",
	"externalConversations": "conversations",
	"leadInquiries":         "inquiries",
	"researchMissions":      "research_logs",
	"onlineAgents":          "agents",
	"chatbotTraces":         "chatbot_conversation",
	"strategicChannels":     "internal_channels",
	"globalMessages":        "messages",
	"emailsDispatched":      "emails",
}

type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(ctx context.Context, dsn string) (*Reader, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("metrics: connect read endpoint: %w", err)
	}
	return &Reader{pool: pool}, nil
}

func (r *Reader) Close() {
	r.pool.Close()
}

func (r *Reader) Report(ctx context.Context) (Report, error) {
	report := Report{Counts: make(map[string]int64, len(countedTables))}

	for label, table := range countedTables {
		var n int64
		if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			return Report{}, fmt.Errorf("metrics: count %s: %w", table, err)
		}
		report.Counts[label] = n
	}

	traces, err := r.recentTraces(ctx, 10)
	if err != nil {
		return Report{}, err
	}
	report.ChatbotTraces = traces

	inquiries, err := r.recentInquiries(ctx, 5)
	if err != nil {
		return Report{}, err
	}
	report.RecentInquiries = inquiries

	return report, nil
}

func (r *Reader) recentTraces(ctx context.Context, limit int) ([]domain.ChatbotTrace, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, coalesce(name, ''), coalesce(email, ''), conversation, created_at, session_id
		 FROM chatbot_conversation ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("metrics: recent traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.ChatbotTrace
	for rows.Next() {
		var t domain.ChatbotTrace
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Conversation, &t.CreatedAt, &t.SessionID); err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

func (r *Reader) recentInquiries(ctx context.Context, limit int) ([]domain.Inquiry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT coalesce(name, ''), coalesce(email, ''), coalesce(message, ''), created_at
		 FROM inquiries ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("metrics: recent inquiries: %w", err)
	}
	defer rows.Close()

	var inquiries []domain.Inquiry
	for rows.Next() {
		var q domain.Inquiry
		if err := rows.Scan(&q.Name, &q.Email, &q.Message, &q.CreatedAt); err != nil {
			return nil, err
		}
		inquiries = append(inquiries, q)
	}
	return inquiries, rows.Err()
}
