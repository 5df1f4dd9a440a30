// Package handler holds the gin JSON handlers, one per console screen.
// Handlers bind requests, pull the identity installed by the auth
// middleware, call the screen service and write the response envelope;
// service errors go through c.Error into the error middleware.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/transport/httpdto"
)

type SupportHandler struct {
	service *services.SupportService
}

func NewSupportHandler(service *services.SupportService) *SupportHandler {
	return &SupportHandler{service: service}
}

func (h *SupportHandler) List(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	scope := services.ListScope(c.DefaultQuery("scope", string(services.ScopeAll)))
	list, err := h.service.List(c.Request.Context(), agent, scope)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(list))
}

func (h *SupportHandler) MonitorAISessions(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	list, err := h.service.MonitorAISessions(c.Request.Context(), agent)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(list))
}

func (h *SupportHandler) Assign(c *gin.Context) {
	var req httpdto.AssignConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.Assign(c.Request.Context(), c.Param("id"), req.AgentID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"assigned": true}))
}

func (h *SupportHandler) SetStatus(c *gin.Context) {
	var req httpdto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.SetStatus(c.Request.Context(), c.Param("id"), domain.ConversationStatus(req.Status)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": req.Status}))
}

func (h *SupportHandler) SetPriority(c *gin.Context) {
	var req httpdto.SetPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.SetPriority(c.Request.Context(), c.Param("id"), req.Priority); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"priority": req.Priority}))
}

func (h *SupportHandler) DraftReply(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	draft, err := h.service.DraftReply(c.Request.Context(), agent, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"draft": draft}))
}

func (h *SupportHandler) Sentiment(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	sentiment, err := h.service.Sentiment(c.Request.Context(), agent, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"sentiment": sentiment}))
}
