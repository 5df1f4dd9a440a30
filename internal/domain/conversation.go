package domain

import "time"

type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusPending  ConversationStatus = "pending"
	StatusResolved ConversationStatus = "resolved"
	StatusClosed   ConversationStatus = "closed"
)

// Conversation is the kind-agnostic container the console lists. A support
// conversation carries a contact; an AI session carries a title and the
// owning agent; an internal channel maps onto this through
// InternalChannel.AsConversation.
type Conversation struct {
	ID              string             `json:"id"`
	Kind            Kind               `json:"kind"`
	Status          ConversationStatus `json:"status,omitempty"`
	Priority        int                `json:"priority,omitempty"`
	Subject         string             `json:"subject,omitempty"`
	Title           string             `json:"title,omitempty"`
	ContactID       string             `json:"contact_id,omitempty"`
	AssignedAgentID string             `json:"assigned_agent_id,omitempty"`
	AgentID         string             `json:"agent_id,omitempty"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
	UnreadCount     int                `json:"unread_count,omitempty"`

	Contact *Contact `json:"contact,omitempty"`
	Agent   *Agent   `json:"agent,omitempty"`
}

// SessionTitle derives an AI session title from its first input: the first
// 30 runes, or a fixed label for empty input.
func SessionTitle(content string) string {
	if content == "" {
		return "Intelligence Session"
	}
	runes := []rune(content)
	if len(runes) > 30 {
		return string(runes[:30])
	}
	return content
}

func ConversationFromRow(kind Kind, r Row) Conversation {
	conv := Conversation{
		ID:              r.String("id"),
		Kind:            kind,
		Status:          ConversationStatus(r.String("status")),
		Priority:        int(r.Int("priority")),
		Subject:         r.String("subject"),
		Title:           r.String("title"),
		ContactID:       r.String("contact_id"),
		AssignedAgentID: r.String("assigned_agent_id"),
		AgentID:         r.String("agent_id"),
		UnreadCount:     int(r.Int("unread_count")),
	}
	conv.LastActivityAt = r.Time(Route(kind).ActivityColumn)
	if conv.LastActivityAt.IsZero() {
		conv.LastActivityAt = r.Time("created_at")
	}
	if nested := r.Nested("contact"); nested != nil {
		c := ContactFromRow(nested)
		conv.Contact = &c
	}
	if nested := r.Nested("agent"); nested != nil {
		a := AgentFromRow(nested)
		conv.Agent = &a
	}
	return conv
}
