package domain

import (
	"strings"
	"time"
)

type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAI     SenderType = "ai"
	SenderAgent  SenderType = "agent"
	SenderBot    SenderType = "bot"
	SenderSystem SenderType = "system"
)

// PendingIDPrefix marks a locally synthesized message that has not been
// confirmed by the platform yet. Authoritative rows never carry it.
const PendingIDPrefix = "pending-"

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderType     SenderType `json:"sender_type"`
	SenderID       string     `json:"sender_id,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	AttachmentRefs []string   `json:"attachment_refs,omitempty"`

	// Local-only flags, never persisted.
	Pending bool `json:"pending,omitempty"`
	Failed  bool `json:"failed,omitempty"`
}

func (m Message) IsPending() bool {
	return m.Pending || strings.HasPrefix(m.ID, PendingIDPrefix)
}

// Before orders messages by (created_at, id). Ties on the timestamp fall
// back to the server-assigned id; if the id scheme is not monotonic with
// insertion order, simultaneous messages may swap (known limitation).
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

func MessageFromRow(r Row) Message {
	msg := Message{
		ID:             r.String("id"),
		ConversationID: r.String("conversation_id"),
		SenderType:     SenderType(r.String("sender_type")),
		SenderID:       r.String("sender_id"),
		Content:        r.String("content"),
		CreatedAt:      r.Time("created_at"),
	}
	if msg.ConversationID == "" {
		msg.ConversationID = r.String("channel_id")
	}
	// ai_messages uses a role column instead of sender_type.
	if msg.SenderType == "" {
		switch r.String("role") {
		case "ai":
			msg.SenderType = SenderAI
		case "user":
			msg.SenderType = SenderUser
		}
	}
	return msg
}
