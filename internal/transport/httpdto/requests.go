package httpdto

// Request bodies for the console's JSON endpoints, one block per screen.

type AssignConversationRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SetPriorityRequest struct {
	Priority int `json:"priority"`
}

type DraftReplyRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

type CreateSessionRequest struct {
	FirstInput string `json:"first_input"`
}

type RenameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

type AIReplyRequest struct {
	Input string `json:"input" binding:"required"`
}

type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type OpenDirectChannelRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

type ComposeEmailRequest struct {
	To       []string `json:"to" binding:"required"`
	Subject  string   `json:"subject" binding:"required"`
	BodyText string   `json:"body_text"`
}

type EmailSettingsRequest struct {
	Enabled          bool   `json:"enabled"`
	FromName         string `json:"from_name"`
	FromEmail        string `json:"from_email"`
	WebhookURL       string `json:"webhook_url"`
	WebhookAuthToken string `json:"webhook_auth_token"`
}

type ResearchRequest struct {
	TargetURL string `json:"target_url" binding:"required"`
}

type UnlockResourceRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
}

type PresignAttachmentsRequest struct {
	Files []AttachmentFile `json:"files" binding:"required"`
}

type AttachmentFile struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}

type UpdateThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}
