package domain

import "time"

// Inquiry is a lead captured by the public site.
type Inquiry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func InquiryFromRow(r Row) Inquiry {
	return Inquiry{
		ID:        r.String("id"),
		Name:      r.String("name"),
		Email:     r.String("email"),
		Message:   r.String("message"),
		Status:    r.String("status"),
		CreatedAt: r.Time("created_at"),
	}
}

type EmailDirection string

const (
	EmailInbound  EmailDirection = "inbound"
	EmailOutbound EmailDirection = "outbound"
)

type Email struct {
	ID          string         `json:"id"`
	Direction   EmailDirection `json:"direction"`
	FromAddress string         `json:"from_address"`
	ToAddress   []string       `json:"to_address"`
	Subject     string         `json:"subject"`
	BodyText    string         `json:"body_text"`
	IsRead      bool           `json:"is_read"`
	CreatedAt   time.Time      `json:"created_at"`
}

func EmailFromRow(r Row) Email {
	e := Email{
		ID:          r.String("id"),
		Direction:   EmailDirection(r.String("direction")),
		FromAddress: r.String("from_address"),
		Subject:     r.String("subject"),
		BodyText:    r.String("body_text"),
		IsRead:      r.Bool("is_read"),
		CreatedAt:   r.Time("created_at"),
	}
	if raw, ok := r["to_address"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				e.ToAddress = append(e.ToAddress, s)
			}
		}
	}
	return e
}

// EmailSettings is the relay configuration row maintained in Settings.
// Either a webhook relay or SMTP is configured; webhook wins when both are.
type EmailSettings struct {
	Enabled          bool   `json:"enabled"`
	FromName         string `json:"from_name"`
	FromEmail        string `json:"from_email"`
	WebhookURL       string `json:"webhook_url,omitempty"`
	WebhookAuthToken string `json:"webhook_auth_token,omitempty"`
}

func EmailSettingsFromRow(r Row) EmailSettings {
	return EmailSettings{
		Enabled:          r.Bool("enabled"),
		FromName:         r.String("from_name"),
		FromEmail:        r.String("from_email"),
		WebhookURL:       r.String("webhook_url"),
		WebhookAuthToken: r.String("webhook_auth_token"),
	}
}

type ResearchLog struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agent_id"`
	TargetURL      string    `json:"target_url"`
	ResearchOutput string    `json:"research_output"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func ResearchLogFromRow(r Row) ResearchLog {
	return ResearchLog{
		ID:             r.String("id"),
		AgentID:        r.String("agent_id"),
		TargetURL:      r.String("target_url"),
		ResearchOutput: r.String("research_output"),
		Status:         r.String("status"),
		CreatedAt:      r.Time("created_at"),
	}
}

// Resource is a knowledge pack an agent can unlock; unlocked content is
// injected into AI chat context.
type Resource struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	KnowledgeContent string `json:"knowledge_content,omitempty"`
}

func ResourceFromRow(r Row) Resource {
	return Resource{
		ID:               r.String("id"),
		Name:             r.String("name"),
		Description:      r.String("description"),
		KnowledgeContent: r.String("knowledge_content"),
	}
}
