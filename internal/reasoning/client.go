// Package reasoning is the gateway to the hosted language model. It owns
// prompt construction for the three console use cases — drafting support
// replies, answering dashboard questions over live CRM state, and scoring
// conversation sentiment — so callers never assemble prompt text themselves.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tradmak/aixos/internal/config"
)

// Completer is the minimal surface services depend on; tests install a
// canned implementation.
type Completer interface {
	Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error)
}

type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg config.ReasoningConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
	}
}

func (c *Client) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("reasoning: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("reasoning: completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
