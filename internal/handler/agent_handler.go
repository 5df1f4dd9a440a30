package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/transport/httpdto"
)

type AgentHandler struct {
	service *services.AgentService
}

func NewAgentHandler(service *services.AgentService) *AgentHandler {
	return &AgentHandler{service: service}
}

// Me returns the resolved identity behind the bearer token.
func (h *AgentHandler) Me(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(agent))
}

func (h *AgentHandler) Directory(c *gin.Context) {
	agents, err := h.service.Directory(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(agents))
}

func (h *AgentHandler) UpdateTheme(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.UpdateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.UpdateTheme(c.Request.Context(), agent, req.Theme); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"theme": req.Theme}))
}
