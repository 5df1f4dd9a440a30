package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/transport/httpdto"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// PresignAttachments issues upload tickets for a send's image attachments.
func (h *UploadHandler) PresignAttachments(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.PresignAttachmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	files := make([]services.AttachmentRequest, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, services.AttachmentRequest{
			FileName:    f.FileName,
			ContentType: f.ContentType,
			SizeBytes:   f.SizeBytes,
		})
	}

	tickets, err := h.service.PresignAttachments(c.Request.Context(), agent.ID, files)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(tickets))
}
