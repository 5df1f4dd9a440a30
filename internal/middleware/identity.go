package middleware

import (
	"context"

	"github.com/tradmak/aixos/internal/domain"
)

type contextKey string

const agentContextKey contextKey = "aixos.agent"

// WithAgent stores the resolved identity on the request context.
func WithAgent(ctx context.Context, agent domain.Agent) context.Context {
	return context.WithValue(ctx, agentContextKey, agent)
}

// AgentFromContext returns the identity installed by the auth middleware.
func AgentFromContext(ctx context.Context) (domain.Agent, bool) {
	agent, ok := ctx.Value(agentContextKey).(domain.Agent)
	return agent, ok
}
