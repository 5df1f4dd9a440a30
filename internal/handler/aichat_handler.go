package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/transport/httpdto"
)

type AIChatHandler struct {
	service *services.AIChatService
}

func NewAIChatHandler(service *services.AIChatService) *AIChatHandler {
	return &AIChatHandler{service: service}
}

func (h *AIChatHandler) Sessions(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	sessions, err := h.service.Sessions(c.Request.Context(), agent.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sessions))
}

func (h *AIChatHandler) CreateSession(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	session, err := h.service.CreateSession(c.Request.Context(), agent.ID, req.FirstInput)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(session))
}

func (h *AIChatHandler) RenameSession(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.RenameSession(c.Request.Context(), agent.ID, c.Param("id"), req.Title); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"title": req.Title}))
}

func (h *AIChatHandler) DeleteSession(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	if err := h.service.DeleteSession(c.Request.Context(), agent.ID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}

// Reply generates and persists the assistant's answer to an input the agent
// already sent through the stream. The new ai message also arrives through
// the change feed; the response here is for immediate display.
func (h *AIChatHandler) Reply(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.AIReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	msg, err := h.service.Reply(c.Request.Context(), agent, c.Param("id"), req.Input, nil)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"message": msg,
		"blocks":  httpdto.RenderBlocks(msg.Content),
	}))
}
