package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/tradmak/aixos/internal/config"
	"github.com/tradmak/aixos/internal/domain"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// EmailSender delivers one email job. The relay picks the transport from
// settings at send time, so toggling the webhook in Settings takes effect
// without a restart.
type EmailSender interface {
	Send(ctx context.Context, job EmailJob, settings domain.EmailSettings) error
}

// Relay sends through the configured webhook when settings carry one,
// otherwise falls back to SMTP. Webhook wins when both are configured.
type Relay struct {
	httpClient *http.Client
	smtp       config.DispatchConfig
}

func NewRelay(cfg config.DispatchConfig) *Relay {
	return &Relay{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		smtp:       cfg,
	}
}

func (r *Relay) Send(ctx context.Context, job EmailJob, settings domain.EmailSettings) error {
	if !settings.Enabled {
		return fmt.Errorf("email dispatch disabled in settings: %w", aixos_errors.ErrDispatchFailed)
	}
	if settings.WebhookURL != "" {
		return r.sendWebhook(ctx, job, settings)
	}
	if r.smtp.SMTPHost != "" {
		return r.sendSMTP(job, settings)
	}
	return fmt.Errorf("no email transport configured: %w", aixos_errors.ErrDispatchFailed)
}

func (r *Relay) sendWebhook(ctx context.Context, job EmailJob, settings domain.EmailSettings) error {
	return r.Dispatch(ctx, settings.WebhookURL, settings.WebhookAuthToken, map[string]any{
		"from_name":  settings.FromName,
		"from_email": settings.FromEmail,
		"to":         job.To,
		"subject":    job.Subject,
		"body_text":  job.BodyText,
	})
}

// Dispatch posts payload to a relay webhook with optional bearer auth.
// Fire-and-forget from the caller's perspective: the error exists for
// logging, never for rollback.
func (r *Relay) Dispatch(ctx context.Context, url, authToken string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("relay webhook status %d: %s: %w", resp.StatusCode, string(respBody), aixos_errors.ErrDispatchFailed)
	}
	return nil
}

func (r *Relay) sendSMTP(job EmailJob, settings domain.EmailSettings) error {
	from := settings.FromEmail
	if from == "" {
		from = r.smtp.SMTPUser
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", settings.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(job.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", job.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(job.BodyText)

	addr := r.smtp.SMTPHost + ":" + r.smtp.SMTPPort
	auth := smtp.PlainAuth("", r.smtp.SMTPUser, r.smtp.SMTPPassword, r.smtp.SMTPHost)
	if err := smtp.SendMail(addr, auth, from, job.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
