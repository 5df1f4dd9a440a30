package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/transport/httpdto"
)

// CRMHandler bundles the small CRM screens: chatbot monitor, inquiries and
// contacts. Each is a couple of endpoints; a handler per screen would be
// ceremony.
type CRMHandler struct {
	monitor   *services.MonitorService
	inquiries *services.InquiryService
	contacts  *services.ContactService
}

func NewCRMHandler(monitor *services.MonitorService, inquiries *services.InquiryService, contacts *services.ContactService) *CRMHandler {
	return &CRMHandler{monitor: monitor, inquiries: inquiries, contacts: contacts}
}

func (h *CRMHandler) Traces(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	query := c.Query("q")

	traces, err := h.monitor.Search(c.Request.Context(), query, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(traces))
}

func (h *CRMHandler) Inquiries(c *gin.Context) {
	inquiries, err := h.inquiries.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(inquiries))
}

func (h *CRMHandler) MarkInquiryContacted(c *gin.Context) {
	if err := h.inquiries.MarkContacted(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "contacted"}))
}

func (h *CRMHandler) Contacts(c *gin.Context) {
	contacts, err := h.contacts.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(contacts))
}

// OpenContactConversation resolves (or creates) the support conversation
// behind a contact card's "Message" action.
func (h *CRMHandler) OpenContactConversation(c *gin.Context) {
	if _, ok := middleware.AgentFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	conversationID, err := h.contacts.OpenConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversation_id": conversationID}))
}
