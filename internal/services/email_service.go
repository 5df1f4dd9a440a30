package services

import (
	"context"
	"strings"

	"github.com/tradmak/aixos/internal/dispatch"
	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// EmailService logs and queues outbound mail. Per-agent dispatch budgets
// are enforced by middleware before requests reach Compose.
type EmailService struct {
	data  gateway.Data
	queue *dispatch.Queue
	log   *logger.Logger
}

func NewEmailService(data gateway.Data, queue *dispatch.Queue, log *logger.Logger) *EmailService {
	return &EmailService{data: data, queue: queue, log: log}
}

// List returns emails in one direction, newest first.
func (e *EmailService) List(ctx context.Context, direction domain.EmailDirection) ([]domain.Email, error) {
	filter := gateway.Filter{}
	if direction != "" {
		filter["direction"] = gateway.Eq(string(direction))
	}
	rows, err := e.data.Query(ctx, "emails", filter, gateway.Desc("created_at"), 0)
	if err != nil {
		return nil, err
	}
	emails := make([]domain.Email, 0, len(rows))
	for _, r := range rows {
		emails = append(emails, domain.EmailFromRow(r))
	}
	return emails, nil
}

func (e *EmailService) MarkRead(ctx context.Context, emailID string) error {
	_, err := e.data.Mutate(ctx, "emails", gateway.OpUpdate,
		map[string]any{"is_read": true},
		gateway.Filter{"id": gateway.Eq(emailID)})
	return err
}

// Compose logs an outbound email and enqueues it for delivery. The row is
// written first with status queued: a delivery failure downstream never
// erases the record of the attempt.
func (e *EmailService) Compose(ctx context.Context, agent domain.Agent, to []string, subject, bodyText string) (domain.Email, error) {
	if len(to) == 0 || strings.TrimSpace(subject) == "" {
		return domain.Email{}, aixos_errors.ErrInvalidInput
	}

	settings, err := e.Settings(ctx)
	if err != nil {
		return domain.Email{}, err
	}

	row, err := e.data.Mutate(ctx, "emails", gateway.OpInsert, map[string]any{
		"direction":    string(domain.EmailOutbound),
		"from_address": settings.FromEmail,
		"to_address":   to,
		"subject":      subject,
		"body_text":    bodyText,
		"is_read":      true,
		"status":       "queued",
	}, nil)
	if err != nil {
		return domain.Email{}, err
	}
	email := domain.EmailFromRow(row)

	job := dispatch.EmailJob{
		EmailID:   email.ID,
		FromName:  settings.FromName,
		FromEmail: settings.FromEmail,
		To:        to,
		Subject:   subject,
		BodyText:  bodyText,
	}
	if err := e.queue.Publish(ctx, job); err != nil {
		e.log.Errorf("email: enqueue %s: %v", email.ID, err)
		if _, merr := e.data.Mutate(ctx, "emails", gateway.OpUpdate,
			map[string]any{"status": "failed"},
			gateway.Filter{"id": gateway.Eq(email.ID)}); merr != nil {
			e.log.Warnf("email: mark failed %s: %v", email.ID, merr)
		}
		return email, aixos_errors.ErrDispatchFailed
	}
	return email, nil
}

// Settings reads the relay configuration row.
func (e *EmailService) Settings(ctx context.Context) (domain.EmailSettings, error) {
	rows, err := e.data.Query(ctx, "email_settings", nil, nil, 1)
	if err != nil {
		return domain.EmailSettings{}, err
	}
	if len(rows) == 0 {
		return domain.EmailSettings{}, nil
	}
	return domain.EmailSettingsFromRow(rows[0]), nil
}

// UpdateSettings rewrites the relay configuration. Admin only.
func (e *EmailService) UpdateSettings(ctx context.Context, agent domain.Agent, settings domain.EmailSettings) error {
	if !agent.IsAdmin() {
		return aixos_errors.ErrForbidden
	}
	payload := map[string]any{
		"enabled":            settings.Enabled,
		"from_name":          settings.FromName,
		"from_email":         settings.FromEmail,
		"webhook_url":        settings.WebhookURL,
		"webhook_auth_token": settings.WebhookAuthToken,
	}

	rows, err := e.data.Query(ctx, "email_settings", nil, nil, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err = e.data.Mutate(ctx, "email_settings", gateway.OpInsert, payload, nil)
		return err
	}
	_, err = e.data.Mutate(ctx, "email_settings", gateway.OpUpdate, payload,
		gateway.Filter{"id": gateway.Eq(rows[0].String("id"))})
	return err
}
