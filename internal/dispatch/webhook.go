package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradmak/aixos/internal/config"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// Webhooks calls the automation endpoints: the external chat pipeline and
// the deep-research pipeline. Both speak the same loose contract — POST a
// JSON object, get back an object or a one-element array whose "output"
// field carries the text.
type Webhooks struct {
	chatURL     string
	researchURL string
	httpClient  *http.Client
}

func NewWebhooks(cfg config.DispatchConfig) *Webhooks {
	return &Webhooks{
		chatURL:     cfg.ChatWebhookURL,
		researchURL: cfg.ResearchWebhook,
		// Research runs a crawl on the far side; give it room.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// ChatReply forwards a chat turn to the automation pipeline and returns the
// generated reply text.
func (w *Webhooks) ChatReply(ctx context.Context, sessionID, message string) (string, error) {
	if w.chatURL == "" {
		return "", fmt.Errorf("chat webhook not configured: %w", aixos_errors.ErrDispatchFailed)
	}
	return w.post(ctx, w.chatURL, map[string]any{
		"sessionId": sessionID,
		"message":   message,
	})
}

// Research submits a target URL to the deep-research pipeline and returns
// the research report text.
func (w *Webhooks) Research(ctx context.Context, targetURL string) (string, error) {
	if w.researchURL == "" {
		return "", fmt.Errorf("research webhook not configured: %w", aixos_errors.ErrDispatchFailed)
	}
	return w.post(ctx, w.researchURL, map[string]any{
		"url": targetURL,
	})
}

func (w *Webhooks) post(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook status %d: %s: %w", resp.StatusCode, string(raw), aixos_errors.ErrDispatchFailed)
	}
	return extractOutput(raw)
}

type webhookResult struct {
	Output string `json:"output"`
	Reply  string `json:"reply"`
	Text   string `json:"text"`
}

func (r webhookResult) value() string {
	switch {
	case r.Output != "":
		return r.Output
	case r.Reply != "":
		return r.Reply
	default:
		return r.Text
	}
}

func extractOutput(raw []byte) (string, error) {
	var obj webhookResult
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v := obj.value(); v != "" {
			return v, nil
		}
	}
	var list []webhookResult
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if v := list[0].value(); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("webhook response had no output field: %w", aixos_errors.ErrDispatchFailed)
}
