package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler upgrades browser connections onto the message stream.
type StreamHandler struct {
	hub       *Hub
	jwtSecret string
	data      gateway.Data
	cache     *redis.CacheStore
	log       *logger.Logger
	logger    *StreamLogger
}

func NewStreamHandler(hub *Hub, jwtSecret string, data gateway.Data, cache *redis.CacheStore, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		data:      data,
		cache:     cache,
		log:       log,
		logger:    NewStreamLogger(),
	}
}

// Handle upgrades HTTP to WebSocket
func (h *StreamHandler) Handle(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	agent, err := middleware.AuthenticateToken(c.Request.Context(), token, h.jwtSecret, h.data, h.cache, h.log)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("stream upgrade failed", agent.ID, "", err)
		return
	}

	connID := uuid.New().String()
	client := NewClient(h.hub, conn, agent, connID, h.logger)

	h.hub.register <- client
}

func (h *StreamHandler) extractToken(c *gin.Context) string {
	// Check query parameter
	token := c.Query("token")
	if token != "" {
		return token
	}

	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return ""
}
