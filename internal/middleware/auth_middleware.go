package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/internal/transport/httpdto"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// AuthMiddleware verifies the platform-issued bearer token (HS256, shared
// secret) and resolves the agent profile behind it, cache first. Tokens are
// minted by the platform's auth endpoint; this middleware only verifies.
func AuthMiddleware(jwtSecret string, data gateway.Data, cache *redis.CacheStore, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		userID, err := verifyToken(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		agent, err := resolveAgent(c.Request.Context(), userID, data, cache, log)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unknown agent", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := WithAgent(c.Request.Context(), agent)
		ctx = context.WithValue(ctx, logger.AgentIdKey, agent.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthenticateToken verifies a raw bearer token and resolves its agent.
// The websocket endpoint uses it directly: browsers cannot set headers on
// an upgrade request, so the token arrives as a query parameter instead.
func AuthenticateToken(ctx context.Context, token, secret string, data gateway.Data, cache *redis.CacheStore, log *logger.Logger) (domain.Agent, error) {
	userID, err := verifyToken(token, secret)
	if err != nil {
		return domain.Agent{}, err
	}
	return resolveAgent(ctx, userID, data, cache, log)
}

func verifyToken(token, secret string) (string, error) {
	if token == "" {
		return "", aixos_errors.ErrUnauthorized
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, aixos_errors.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", aixos_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", aixos_errors.ErrUnauthorized
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", aixos_errors.ErrUnauthorized
	}
	return sub, nil
}

func resolveAgent(ctx context.Context, userID string, data gateway.Data, cache *redis.CacheStore, log *logger.Logger) (domain.Agent, error) {
	if agent, ok, err := cache.GetAgent(ctx, userID); err == nil && ok {
		return agent, nil
	}

	rows, err := data.Query(ctx, "agents", gateway.Filter{"user_id": gateway.Eq(userID)}, nil, 1)
	if err != nil {
		return domain.Agent{}, err
	}
	if len(rows) == 0 {
		return domain.Agent{}, aixos_errors.ErrNotFound
	}
	agent := domain.AgentFromRow(rows[0])
	if err := cache.SetAgent(ctx, userID, agent); err != nil {
		log.Warnf("auth: agent cache set: %v", err)
	}
	return agent, nil
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
